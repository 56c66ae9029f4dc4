package repository

import (
	"context"
	"time"

	"planetcf/internal/domain/entity"
)

// UpsertResult reports whether the upsert inserted a new row or updated
// an existing one, so the caller can decide whether to (re-)embed.
type UpsertResult struct {
	Entry     entity.Entry
	WasInsert bool
}

// EntryRepository is the Relational Store's Entry-facing surface.
type EntryRepository interface {
	// UpsertEntry inserts on first sighting of (feed_id, guid), setting
	// first_seen = now(); on a pre-existing pair it updates only title,
	// content, and updated_at, leaving first_seen and created_at
	// untouched. now is passed explicitly rather than read from
	// time.Now() so the Fetcher controls the single wall-clock sample
	// used for first_seen within one message.
	//
	// hasTimestamp reports whether e.PublishedAt came from the feed item
	// itself (published or updated) rather than a wall-clock fallback;
	// when false, an update never overwrites a pre-existing entry's
	// stored published_at, since the feed merely omitted it this time.
	UpsertEntry(ctx context.Context, e entity.Entry, hasTimestamp bool, now time.Time) (UpsertResult, error)

	// RecentAcrossFeeds returns the N most recent entries across every
	// active feed, for render_atom/render_rss.
	RecentAcrossFeeds(ctx context.Context, limit int) ([]entity.Entry, error)

	// RecentSince returns entries published on/after since, for
	// render_home's display window, newest first.
	RecentSince(ctx context.Context, since time.Time) ([]entity.Entry, error)

	// RecentGlobal returns the N most recent entries regardless of
	// publish date, the fallback render_home falls back to when the
	// display window is empty.
	RecentGlobal(ctx context.Context, limit int) ([]entity.Entry, error)

	GetByIDs(ctx context.Context, ids []int64) ([]entity.Entry, error)

	// DeletionCandidates returns ids of entries eligible for retention:
	// older than cutoff, or beyond perFeedCap most recent per feed.
	DeletionCandidates(ctx context.Context, cutoff time.Time, perFeedCap int, globalFloor int) ([]int64, error)

	// DeleteByIDs removes entries in bounded batches; batchSize caps the
	// number of ids per statement.
	DeleteByIDs(ctx context.Context, ids []int64, batchSize int) (int64, error)
}
