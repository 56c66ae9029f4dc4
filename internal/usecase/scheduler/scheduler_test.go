package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planetcf/internal/domain/entity"
	"planetcf/internal/infra/worker"
	"planetcf/internal/queue"
	"planetcf/internal/repository"
	"planetcf/internal/usecase/scheduler"
)

type fakeFeedRepo struct {
	mu     sync.Mutex
	active []*entity.Feed
}

func (r *fakeFeedRepo) Get(_ context.Context, id int64) (*entity.Feed, error) { return nil, nil }

func (r *fakeFeedRepo) ListActive(_ context.Context) ([]*entity.Feed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active, nil
}

func (r *fakeFeedRepo) RewriteURL(_ context.Context, id int64, newURL string) error { return nil }

func (r *fakeFeedRepo) ApplyHealthUpdate(_ context.Context, id int64, u repository.FeedHealthUpdate) error {
	return nil
}

type fakeEntryRepo struct {
	mu                  sync.Mutex
	candidates          []int64
	candidatesErr       error
	deleteErr           error
	deletedCalledWith   []int64
	deletedBatchSize    int
	deleteRowsAffected  int64
}

func (r *fakeEntryRepo) UpsertEntry(_ context.Context, e entity.Entry, hasTimestamp bool, now time.Time) (repository.UpsertResult, error) {
	return repository.UpsertResult{}, nil
}
func (r *fakeEntryRepo) RecentAcrossFeeds(_ context.Context, limit int) ([]entity.Entry, error) {
	return nil, nil
}
func (r *fakeEntryRepo) RecentSince(_ context.Context, since time.Time) ([]entity.Entry, error) {
	return nil, nil
}
func (r *fakeEntryRepo) RecentGlobal(_ context.Context, limit int) ([]entity.Entry, error) {
	return nil, nil
}
func (r *fakeEntryRepo) GetByIDs(_ context.Context, ids []int64) ([]entity.Entry, error) {
	return nil, nil
}

func (r *fakeEntryRepo) DeletionCandidates(_ context.Context, cutoff time.Time, perFeedCap, globalFloor int) ([]int64, error) {
	if r.candidatesErr != nil {
		return nil, r.candidatesErr
	}
	return r.candidates, nil
}

func (r *fakeEntryRepo) DeleteByIDs(_ context.Context, ids []int64, batchSize int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletedCalledWith = ids
	r.deletedBatchSize = batchSize
	if r.deleteErr != nil {
		return 0, r.deleteErr
	}
	if r.deleteRowsAffected != 0 {
		return r.deleteRowsAffected, nil
	}
	return int64(len(ids)), nil
}

type fakeVectorRepo struct {
	mu             sync.Mutex
	deleteErr      error
	deletedIDs     []int64
	deleteCalls    int
}

func (r *fakeVectorRepo) Upsert(_ context.Context, entryID int64, embedding []float32, titlePrefix string) error {
	return nil
}

func (r *fakeVectorRepo) DeleteByEntryIDs(_ context.Context, entryIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteCalls++
	r.deletedIDs = entryIDs
	return r.deleteErr
}

func (r *fakeVectorRepo) SearchSimilar(_ context.Context, query []float32, topK int) ([]repository.VectorMatch, error) {
	return nil, nil
}

type fakeQueue struct {
	mu        sync.Mutex
	published []entity.FeedJob
	publishErrForFeed map[int64]error
}

func (q *fakeQueue) Publish(_ context.Context, job entity.FeedJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err, ok := q.publishErrForFeed[job.FeedID]; ok {
		return err
	}
	q.published = append(q.published, job)
	return nil
}

func (q *fakeQueue) Consume(_ context.Context) (<-chan queue.Delivery, error) { return nil, nil }
func (q *fakeQueue) DeadLettered(_ context.Context) ([]entity.FeedJob, error) { return nil, nil }
func (q *fakeQueue) Close() error                                             { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunFanout_PublishesOneJobPerActiveFeed(t *testing.T) {
	feeds := &fakeFeedRepo{active: []*entity.Feed{
		{ID: 1, URL: "https://a.example/feed.xml", ETag: `"etag-a"`},
		{ID: 2, URL: "https://b.example/feed.xml", LastModified: "Mon, 02 Jan 2006 15:04:05 GMT"},
	}}
	q := &fakeQueue{}
	s := scheduler.New(feeds, &fakeEntryRepo{}, &fakeVectorRepo{}, q, testLogger(), worker.DefaultSchedulerConfig(), worker.NewSchedulerMetrics())

	published, err := s.RunFanout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, published)
	require.Len(t, q.published, 2)
	assert.Equal(t, int64(1), q.published[0].FeedID)
	assert.Equal(t, `"etag-a"`, q.published[0].ETag)
	assert.NotEmpty(t, q.published[0].CorrelationID)
	assert.NotEqual(t, q.published[0].CorrelationID, q.published[1].CorrelationID)
}

func TestRunFanout_NoActiveFeedsPublishesNothing(t *testing.T) {
	feeds := &fakeFeedRepo{active: nil}
	q := &fakeQueue{}
	s := scheduler.New(feeds, &fakeEntryRepo{}, &fakeVectorRepo{}, q, testLogger(), worker.DefaultSchedulerConfig(), worker.NewSchedulerMetrics())

	published, err := s.RunFanout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, published)
	assert.Empty(t, q.published)
}

func TestRunFanout_OnePublishFailureDoesNotAbortRemainingFeeds(t *testing.T) {
	feeds := &fakeFeedRepo{active: []*entity.Feed{
		{ID: 1, URL: "https://a.example/feed.xml"},
		{ID: 2, URL: "https://b.example/feed.xml"},
		{ID: 3, URL: "https://c.example/feed.xml"},
	}}
	q := &fakeQueue{publishErrForFeed: map[int64]error{2: errors.New("broker unavailable")}}
	s := scheduler.New(feeds, &fakeEntryRepo{}, &fakeVectorRepo{}, q, testLogger(), worker.DefaultSchedulerConfig(), worker.NewSchedulerMetrics())

	published, err := s.RunFanout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, published)
	require.Len(t, q.published, 2)
	assert.ElementsMatch(t, []int64{1, 3}, []int64{q.published[0].FeedID, q.published[1].FeedID})
}

func TestRunFanout_ListActiveErrorPropagates(t *testing.T) {
	brokenFeeds := &brokenFeedRepo{err: errors.New("db down")}
	q := &fakeQueue{}
	s := scheduler.New(brokenFeeds, &fakeEntryRepo{}, &fakeVectorRepo{}, q, testLogger(), worker.DefaultSchedulerConfig(), worker.NewSchedulerMetrics())

	_, err := s.RunFanout(context.Background())
	assert.Error(t, err)
}

type brokenFeedRepo struct{ err error }

func (r *brokenFeedRepo) Get(_ context.Context, id int64) (*entity.Feed, error) { return nil, r.err }
func (r *brokenFeedRepo) ListActive(_ context.Context) ([]*entity.Feed, error)  { return nil, r.err }
func (r *brokenFeedRepo) RewriteURL(_ context.Context, id int64, newURL string) error {
	return r.err
}
func (r *brokenFeedRepo) ApplyHealthUpdate(_ context.Context, id int64, u repository.FeedHealthUpdate) error {
	return r.err
}

func TestRunRetention_DeletesVectorsBeforeEntries(t *testing.T) {
	entries := &fakeEntryRepo{candidates: []int64{10, 11, 12}}
	vectors := &fakeVectorRepo{}
	cfg := worker.DefaultSchedulerConfig()
	cfg.DeleteBatchSize = 500
	s := scheduler.New(&fakeFeedRepo{}, entries, vectors, &fakeQueue{}, testLogger(), cfg, worker.NewSchedulerMetrics())

	deleted, err := s.RunRetention(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.Equal(t, 1, vectors.deleteCalls)
	assert.ElementsMatch(t, []int64{10, 11, 12}, vectors.deletedIDs)
	assert.ElementsMatch(t, []int64{10, 11, 12}, entries.deletedCalledWith)
	assert.Equal(t, 500, entries.deletedBatchSize)
}

func TestRunRetention_NoCandidatesIsANoop(t *testing.T) {
	entries := &fakeEntryRepo{candidates: nil}
	vectors := &fakeVectorRepo{}
	s := scheduler.New(&fakeFeedRepo{}, entries, vectors, &fakeQueue{}, testLogger(), worker.DefaultSchedulerConfig(), worker.NewSchedulerMetrics())

	deleted, err := s.RunRetention(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
	assert.Equal(t, 0, vectors.deleteCalls)
}

func TestRunRetention_VectorDeleteFailureSkipsEntryDeleteAndRetriesNextSweep(t *testing.T) {
	entries := &fakeEntryRepo{candidates: []int64{1, 2}}
	vectors := &fakeVectorRepo{deleteErr: errors.New("vector store unreachable")}
	s := scheduler.New(&fakeFeedRepo{}, entries, vectors, &fakeQueue{}, testLogger(), worker.DefaultSchedulerConfig(), worker.NewSchedulerMetrics())

	deleted, err := s.RunRetention(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
	assert.Nil(t, entries.deletedCalledWith, "entries must not be deleted when their vectors failed to delete")
}

func TestRunRetention_DeletionCandidatesErrorPropagates(t *testing.T) {
	entries := &fakeEntryRepo{candidatesErr: errors.New("query failed")}
	s := scheduler.New(&fakeFeedRepo{}, entries, &fakeVectorRepo{}, &fakeQueue{}, testLogger(), worker.DefaultSchedulerConfig(), worker.NewSchedulerMetrics())

	_, err := s.RunRetention(context.Background())
	assert.Error(t, err)
}

func TestStart_RegistersBothCronEntriesAndStop(t *testing.T) {
	cfg := worker.DefaultSchedulerConfig()
	s := scheduler.New(&fakeFeedRepo{}, &fakeEntryRepo{}, &fakeVectorRepo{}, &fakeQueue{}, testLogger(), cfg, worker.NewSchedulerMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	s.Stop()
}

func TestStart_InvalidTimezoneFallsBackToUTC(t *testing.T) {
	cfg := worker.DefaultSchedulerConfig()
	cfg.Timezone = "Not/A/Real/Zone"
	s := scheduler.New(&fakeFeedRepo{}, &fakeEntryRepo{}, &fakeVectorRepo{}, &fakeQueue{}, testLogger(), cfg, worker.NewSchedulerMetrics())

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}
