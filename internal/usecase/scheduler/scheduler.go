// Package scheduler drives the two periodic jobs that keep the system
// moving without a human in the loop: fan-out, which turns every active
// Feed into one Feed Job on the Queue, and the retention sweep, which
// trims old entries out of the Vector Store and Relational Store.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"planetcf/internal/domain/entity"
	"planetcf/internal/infra/worker"
	"planetcf/internal/queue"
	"planetcf/internal/repository"
)

// Scheduler owns the cron engine and both jobs' dependencies. Fan-out and
// retention share nothing at runtime beyond the store connections, which
// are safe for concurrent use, so the two cron entries never need to
// coordinate with each other.
type Scheduler struct {
	feeds   repository.FeedRepository
	entries repository.EntryRepository
	vectors repository.VectorRepository
	queue   queue.Queue
	logger  *slog.Logger
	cfg     worker.SchedulerConfig
	metrics *worker.SchedulerMetrics

	cron *cron.Cron
}

// New builds a Scheduler. Call Start to register both jobs and begin
// ticking; it does not schedule anything on its own.
func New(
	feeds repository.FeedRepository,
	entries repository.EntryRepository,
	vectors repository.VectorRepository,
	q queue.Queue,
	logger *slog.Logger,
	cfg worker.SchedulerConfig,
	metrics *worker.SchedulerMetrics,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		feeds:   feeds,
		entries: entries,
		vectors: vectors,
		queue:   q,
		logger:  logger,
		cfg:     cfg,
		metrics: metrics,
	}
}

// Start loads the configured timezone, registers the fan-out and
// retention cron entries, and begins ticking. It returns once both
// entries are registered; the cron engine itself runs on its own
// goroutines until Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	loc, err := time.LoadLocation(s.cfg.Timezone)
	if err != nil {
		s.logger.Error("invalid scheduler timezone, using UTC", slog.String("timezone", s.cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}

	s.cron = cron.New(cron.WithLocation(loc))

	if _, err := s.cron.AddFunc(s.cfg.FanoutCron, func() {
		s.runFanout(ctx)
	}); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.RetentionCron, func() {
		s.runRetention(ctx)
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		slog.String("fanout_cron", s.cfg.FanoutCron),
		slog.String("retention_cron", s.cfg.RetentionCron),
		slog.String("timezone", s.cfg.Timezone))
	return nil
}

// Stop halts the cron engine and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

// runFanout wraps RunFanout with the timeout-and-metrics envelope every
// cron tick goes through.
func (s *Scheduler) runFanout(parent context.Context) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.RunTimeout)
	defer cancel()

	published, err := s.RunFanout(ctx)
	duration := time.Since(start)
	s.metrics.RecordFanoutDuration(duration.Seconds())

	if err != nil {
		s.metrics.RecordFanoutRun("failure")
		s.logger.Error("fanout failed", slog.Any("error", err), slog.Duration("duration", duration))
		return
	}
	s.metrics.RecordFanoutRun("success")
	s.metrics.RecordFeedsPublished(published)
	s.metrics.RecordFanoutSuccess()
	s.logger.Info("fanout completed", slog.Int("feeds_published", published), slog.Duration("duration", duration))
}

// RunFanout selects every active feed and publishes one Feed Job per
// feed, each carrying a fresh correlation id so the downstream fetch (and
// any error it produces) can be joined back to this run in logs. A
// publish failure for one feed is logged and skipped; it does not abort
// the remaining feeds.
func (s *Scheduler) RunFanout(ctx context.Context) (int, error) {
	feeds, err := s.feeds.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	published := 0
	for _, feed := range feeds {
		job := entity.FeedJob{
			FeedID:        feed.ID,
			URL:           feed.URL,
			ETag:          feed.ETag,
			LastModified:  feed.LastModified,
			ScheduledAt:   now,
			CorrelationID: uuid.New().String(),
		}
		if err := s.queue.Publish(ctx, job); err != nil {
			s.logger.Warn("failed to publish feed job",
				slog.Int64("feed_id", feed.ID),
				slog.String("correlation_id", job.CorrelationID),
				slog.Any("error", err))
			continue
		}
		published++
	}
	return published, nil
}

// runRetention wraps RunRetention with the timeout-and-metrics envelope
// every cron tick goes through.
func (s *Scheduler) runRetention(parent context.Context) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.RunTimeout)
	defer cancel()

	deleted, err := s.RunRetention(ctx)
	duration := time.Since(start)
	s.metrics.RecordRetentionDuration(duration.Seconds())

	if err != nil {
		s.metrics.RecordRetentionRun("failure")
		s.logger.Error("retention sweep failed", slog.Any("error", err), slog.Duration("duration", duration))
		return
	}
	s.metrics.RecordRetentionRun("success")
	s.metrics.RecordEntriesDeleted(deleted)
	s.metrics.RecordRetentionSuccess()
	s.logger.Info("retention sweep completed", slog.Int64("entries_deleted", deleted), slog.Duration("duration", duration))
}

// RunRetention computes the deletion set (older than RetentionDays,
// beyond RetentionMaxPerFeed per feed, never below FallbackFloor
// globally), deletes the matching vectors first on a best-effort basis,
// then deletes the entries themselves in bounded batches. If the vector
// delete fails, the entry rows are left in place so the next sweep
// re-attempts the same candidates.
func (s *Scheduler) RunRetention(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays)

	candidates, err := s.entries.DeletionCandidates(ctx, cutoff, s.cfg.RetentionMaxPerFeed, s.cfg.FallbackFloor)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	// The entry rows are the source of truth DeletionCandidates reads
	// from next sweep, so they must not be removed until their vectors
	// are confirmed gone: deleting the entry first would leave an
	// orphaned vector with nothing left to re-trigger its cleanup.
	if err := s.vectors.DeleteByEntryIDs(ctx, candidates); err != nil {
		s.metrics.RecordVectorDeleteFailure()
		s.logger.Warn("vector deletion failed, retrying entire candidate set next sweep", slog.Any("error", err), slog.Int("candidate_count", len(candidates)))
		return 0, nil
	}

	deleted, err := s.entries.DeleteByIDs(ctx, candidates, s.cfg.DeleteBatchSize)
	if err != nil {
		return deleted, err
	}
	return deleted, nil
}
