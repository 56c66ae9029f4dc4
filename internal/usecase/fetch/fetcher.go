// Package fetch implements the Fetcher Worker: one Feed Job in, one
// conditional HTTP fetch, parse, and bounded entry upsert out. Every
// job is processed independently of every other; the only state shared
// across jobs is the store connections, which are safe for concurrent
// use.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"planetcf/internal/domain/entity"
	"planetcf/internal/feedparser"
	"planetcf/internal/queue"
	"planetcf/internal/repository"
	"planetcf/internal/resilience/retry"
	"planetcf/internal/security/gatekeeper"
	"planetcf/internal/security/sanitizer"
	"planetcf/internal/usecase/embed"
)

// Fetcher consumes Feed Jobs and runs the conditional-fetch, parse, and
// upsert pipeline of spec §4.4 for each one.
type Fetcher struct {
	feeds     repository.FeedRepository
	entries   repository.EntryRepository
	parser    *feedparser.Parser
	sanitizer *sanitizer.Sanitizer
	embedHook *embed.Hook
	logger    *slog.Logger
	cfg       Config

	// fetch performs the conditional HTTP GET for one job. Defaults to
	// doConditionalFetch over a gatekeeper-wrapped safe client; tests
	// substitute a stub so they never need a real, dialable origin
	// server (which the SSRF guard would reject as loopback anyway).
	fetch func(ctx context.Context, job entity.FeedJob) (*http.Response, error)
}

// New builds a Fetcher using a gatekeeper-wrapped safe HTTP client.
func New(feeds repository.FeedRepository, entries repository.EntryRepository, embedHook *embed.Hook, logger *slog.Logger, cfg Config) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fetcher{
		feeds:     feeds,
		entries:   entries,
		parser:    feedparser.New(),
		sanitizer: sanitizer.New(),
		embedHook: embedHook,
		logger:    logger,
		cfg:       cfg,
	}
	client := gatekeeper.NewSafeClient(cfg.HTTPTimeout).Client
	f.fetch = func(ctx context.Context, job entity.FeedJob) (*http.Response, error) {
		return doConditionalFetch(ctx, client, job, cfg.UserAgent)
	}
	return f
}

// Run drains deliveries until the channel closes or ctx is canceled,
// processing up to cfg.Concurrency jobs at once. Each job's outcome is
// handled entirely within its own goroutine: one job's failure never
// cancels or blocks another, per §4.4.1.
func (f *Fetcher) Run(ctx context.Context, deliveries <-chan queue.Delivery) error {
	concurrency := f.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	g, gctx := errgroup.WithContext(ctx)
	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				return g.Wait()
			}
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return g.Wait()
			}
			g.Go(func() error {
				defer func() { <-sem }()
				f.handleDelivery(ctx, d)
				return nil
			})
		case <-gctx.Done():
			return g.Wait()
		}
	}
}

// handleDelivery bounds one job's processing by FeedTimeout and maps the
// outcome onto the Delivery's Ack/Nack contract.
func (f *Fetcher) handleDelivery(ctx context.Context, d queue.Delivery) {
	start := time.Now()
	msgCtx, cancel := context.WithTimeout(ctx, f.cfg.FeedTimeout)
	defer cancel()

	out := f.processJob(msgCtx, d.Job)
	jobDurationSeconds.Observe(time.Since(start).Seconds())

	if out.terminal {
		jobsProcessedTotal.WithLabelValues(out.metricOutcome).Inc()
		d.Ack()
		return
	}
	jobsProcessedTotal.WithLabelValues("retry").Inc()
	d.Nack(true, out.retryDelay)
}

// result describes the terminal disposition of one Feed Job.
type result struct {
	terminal      bool
	metricOutcome string
	retryDelay    time.Duration
}

func terminalResult(outcome string) result { return result{terminal: true, metricOutcome: outcome} }

func retryResult(delay time.Duration) result { return result{terminal: false, retryDelay: delay} }

// processJob runs the full per-message pipeline of spec §4.4.
func (f *Fetcher) processJob(ctx context.Context, job entity.FeedJob) result {
	log := f.logger.With(slog.Int64("feed_id", job.FeedID), slog.String("correlation_id", job.CorrelationID))

	if err := gatekeeper.Validate(job.URL); err != nil {
		log.Warn("feed job rejected by gatekeeper", slog.Any("error", err))
		f.recordFailure(ctx, job.FeedID, err.Error())
		return terminalResult("rejected")
	}

	resp, err := f.fetch(ctx, job)
	if err != nil {
		log.Warn("feed fetch failed", slog.Any("error", err))
		f.recordFailure(ctx, job.FeedID, err.Error())
		if !retry.IsRetryable(err) {
			return terminalResult("fetch_failed")
		}
		return retryResult(f.cfg.DefaultRetryDelay)
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL.String()
	sawPermanentRedirect := redirectChainHasPermanent(resp)

	switch {
	case resp.StatusCode == http.StatusNotModified:
		log.Info("feed not modified")
		f.recordSuccess(ctx, job.FeedID, job.ETag, job.LastModified, nil)
		return terminalResult("not_modified")

	case resp.StatusCode == http.StatusTooManyRequests:
		delay := parseRetryAfter(resp.Header.Get("Retry-After"), f.cfg.DefaultRetryDelay)
		log.Warn("feed rate limited", slog.Duration("retry_after", delay))
		f.recordFailure(ctx, job.FeedID, "429 too many requests")
		return retryResult(delay)

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to parse below

	default:
		msg := fmt.Sprintf("unexpected status %d", resp.StatusCode)
		log.Warn("feed fetch returned error status", slog.Int("status", resp.StatusCode))
		f.recordFailure(ctx, job.FeedID, msg)
		return retryResult(f.cfg.DefaultRetryDelay)
	}

	if err := gatekeeper.Validate(finalURL); err != nil {
		log.Warn("redirect target rejected by gatekeeper", slog.Any("error", err))
		f.recordFailure(ctx, job.FeedID, err.Error())
		return terminalResult("rejected")
	}

	body := io.LimitReader(resp.Body, f.cfg.MaxBodyBytes)
	parsed, err := feedparser.Parse(ctx, f.parser, body)
	if err != nil {
		log.Warn("feed parse failed", slog.Any("error", err))
		f.recordFailure(ctx, job.FeedID, err.Error())
		return retryResult(f.cfg.DefaultRetryDelay)
	}

	now := time.Now()
	maxPublished := f.upsertEntries(ctx, job.FeedID, parsed.Entries, now, log)

	if sawPermanentRedirect && finalURL != job.URL {
		if err := f.feeds.RewriteURL(ctx, job.FeedID, finalURL); err != nil {
			log.Warn("failed to rewrite feed url after permanent redirect", slog.Any("error", err))
		}
	}

	f.recordSuccess(ctx, job.FeedID, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), maxPublished)
	return terminalResult("success")
}

// doConditionalFetch builds and executes the conditional GET, following
// redirects via the safe client's default policy (redirect targets are
// re-validated connection-by-connection by the gatekeeper-wrapped
// dialer; the final target is re-checked again explicitly below since
// the dialer only sees IPs, not the gatekeeper's hostname-level rules).
func doConditionalFetch(ctx context.Context, client *http.Client, job entity.FeedJob, userAgent string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")
	if job.ETag != "" {
		req.Header.Set("If-None-Match", job.ETag)
	}
	if job.LastModified != "" {
		req.Header.Set("If-Modified-Since", job.LastModified)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

// redirectChainHasPermanent reports whether a 301 or 308 appeared
// anywhere in the chain that produced resp. net/http's default
// CheckRedirect only exposes the final response, but it populates
// resp.Request with the final request and chains resp.Request.Response
// back through every intermediate hop.
func redirectChainHasPermanent(resp *http.Response) bool {
	for r := resp.Request.Response; r != nil; r = priorResponse(r) {
		if r.StatusCode == http.StatusMovedPermanently || r.StatusCode == http.StatusPermanentRedirect {
			return true
		}
	}
	return false
}

func priorResponse(r *http.Response) *http.Response {
	if r.Request == nil {
		return nil
	}
	return r.Request.Response
}

// parseRetryAfter parses a Retry-After header as either delta-seconds or
// an HTTP-date, falling back to def when absent or unparseable.
func parseRetryAfter(header string, def time.Duration) time.Duration {
	if header == "" {
		return def
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 0 {
			return def
		}
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
		return 0
	}
	return def
}

// upsertEntries walks parsed in source order, bounded by
// MaxEntriesPerFeed, and returns the maximum published_at among the
// entries it actually upserted (nil if none).
func (f *Fetcher) upsertEntries(ctx context.Context, feedID int64, items []feedparser.ParsedEntry, now time.Time, log *slog.Logger) *time.Time {
	var maxPublished *time.Time

	for i, item := range items {
		if i >= f.cfg.MaxEntriesPerFeed {
			log.Info("feed entry skipped: over max-entries-per-feed cap",
				slog.Int("cap", f.cfg.MaxEntriesPerFeed), slog.Int("total_items", len(items)))
			entriesSkippedTotal.WithLabelValues("over_cap").Inc()
			break
		}

		guid := entity.ResolveGUID(item.GUIDCandidate, item.Link, item.Title)
		if guid == "" {
			entriesSkippedTotal.WithLabelValues("no_guid").Inc()
			continue
		}

		publishedAt, hasTimestamp := resolvePublishedAt(item, now)

		e := entity.Entry{
			FeedID:      feedID,
			GUID:        guid,
			URL:         item.Link,
			Title:       item.Title,
			Author:      item.Author,
			Content:     f.sanitizer.Sanitize(item.ContentHTML),
			Summary:     entity.TruncateSummary(item.Summary),
			PublishedAt: publishedAt,
		}

		upserted, err := f.entries.UpsertEntry(ctx, e, hasTimestamp, now)
		if err != nil {
			log.Warn("entry upsert failed, continuing with remaining entries", slog.String("guid", guid), slog.Any("error", err))
			entriesSkippedTotal.WithLabelValues("upsert_error").Inc()
			continue
		}

		if upserted.WasInsert {
			entriesUpsertedTotal.WithLabelValues("inserted").Inc()
		} else {
			entriesUpsertedTotal.WithLabelValues("updated").Inc()
		}

		if f.embedHook != nil {
			f.embedHook.EmbedEntryAsync(ctx, upserted.Entry)
		}

		if maxPublished == nil || upserted.Entry.PublishedAt.After(*maxPublished) {
			p := upserted.Entry.PublishedAt
			maxPublished = &p
		}
	}

	return maxPublished
}

// resolvePublishedAt implements the published/updated/now fallback
// chain, reporting whether the feed itself supplied a timestamp so the
// repository knows not to stomp a pre-existing published_at with a
// fallback wall-clock value.
func resolvePublishedAt(item feedparser.ParsedEntry, now time.Time) (time.Time, bool) {
	if item.Published != nil {
		return *item.Published, true
	}
	if item.Updated != nil {
		return *item.Updated, true
	}
	return now, false
}

func (f *Fetcher) recordSuccess(ctx context.Context, feedID int64, etag, lastModified string, maxPublished *time.Time) {
	now := time.Now()
	update := repository.FeedHealthUpdate{
		ETag:                etag,
		LastModified:        lastModified,
		FetchError:          "",
		ConsecutiveFailures: 0,
		LastFetchAt:         now,
		LastSuccessAt:       &now,
		LastEntryAt:         maxPublished,
	}
	if err := f.feeds.ApplyHealthUpdate(ctx, feedID, update); err != nil {
		f.logger.Warn("failed to record feed success", slog.Int64("feed_id", feedID), slog.Any("error", err))
		return
	}
	f.recordHealthTransition(ctx, feedID)
}

func (f *Fetcher) recordFailure(ctx context.Context, feedID int64, reason string) {
	reason = truncateBytes(reason, f.cfg.MaxErrorBytes)
	now := time.Now()

	feed, err := f.feeds.Get(ctx, feedID)
	if err != nil || feed == nil {
		f.logger.Warn("failed to load feed for health update, applying blind increment", slog.Int64("feed_id", feedID))
		_ = f.feeds.ApplyHealthUpdate(ctx, feedID, repository.FeedHealthUpdate{
			FetchError:          reason,
			ConsecutiveFailures: 1,
			LastFetchAt:         now,
		})
		return
	}

	consecutive := feed.ConsecutiveFailures + 1
	deactivate := consecutive >= f.cfg.DeactivateThreshold

	if err := f.feeds.ApplyHealthUpdate(ctx, feedID, repository.FeedHealthUpdate{
		ETag:                feed.ETag,
		LastModified:        feed.LastModified,
		FetchError:          reason,
		ConsecutiveFailures: consecutive,
		LastFetchAt:         now,
		Deactivate:          deactivate,
	}); err != nil {
		f.logger.Warn("failed to record feed failure", slog.Int64("feed_id", feedID), slog.Any("error", err))
		return
	}
	f.recordHealthTransition(ctx, feedID)
}

func (f *Fetcher) recordHealthTransition(ctx context.Context, feedID int64) {
	feed, err := f.feeds.Get(ctx, feedID)
	if err != nil || feed == nil {
		return
	}
	state := feed.State(f.cfg.FailureThreshold, f.cfg.DeactivateThreshold)
	feedHealthTransitionsTotal.WithLabelValues(string(state)).Inc()
}

func truncateBytes(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}
