package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"planetcf/internal/domain/entity"
	"planetcf/internal/repository"
)

// EntryRepo is the database/sql-backed EntryRepository implementation.
type EntryRepo struct {
	db dbExecutor
}

func NewEntryRepo(db dbExecutor) *EntryRepo {
	return &EntryRepo{db: db}
}

// UpsertEntry resolves identity on (feed_id, guid): the first sighting
// inserts with first_seen = now, a later sighting of the same pair
// updates title/author/content/summary/published_at/updated_at only,
// leaving first_seen and created_at untouched.
func (r *EntryRepo) UpsertEntry(ctx context.Context, e entity.Entry, hasTimestamp bool, now time.Time) (repository.UpsertResult, error) {
	row := r.db.QueryRowContext(ctx, `
INSERT INTO entries (feed_id, guid, url, title, author, content, summary, published_at, updated_at, first_seen, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $9)
ON CONFLICT (feed_id, guid) DO UPDATE SET
  url = EXCLUDED.url,
  title = EXCLUDED.title,
  author = EXCLUDED.author,
  content = EXCLUDED.content,
  summary = EXCLUDED.summary,
  published_at = CASE WHEN $10 THEN EXCLUDED.published_at ELSE entries.published_at END,
  updated_at = EXCLUDED.updated_at
RETURNING id, feed_id, guid, url, title, author, content, summary, published_at, updated_at, first_seen, created_at,
          (xmax = 0) AS was_insert`,
		e.FeedID, e.GUID, e.URL, e.Title, e.Author, e.Content, e.Summary, e.PublishedAt, now, hasTimestamp)

	var out entity.Entry
	var wasInsert bool
	err := row.Scan(
		&out.ID, &out.FeedID, &out.GUID, &out.URL, &out.Title, &out.Author, &out.Content, &out.Summary,
		&out.PublishedAt, &out.UpdatedAt, &out.FirstSeen, &out.CreatedAt, &wasInsert,
	)
	if err != nil {
		return repository.UpsertResult{}, fmt.Errorf("upsert entry feed=%d guid=%q: %w", e.FeedID, e.GUID, err)
	}
	return repository.UpsertResult{Entry: out, WasInsert: wasInsert}, nil
}

func (r *EntryRepo) RecentAcrossFeeds(ctx context.Context, limit int) ([]entity.Entry, error) {
	return r.queryEntries(ctx, `
SELECT e.id, e.feed_id, e.guid, e.url, e.title, e.author, e.content, e.summary,
       e.published_at, e.updated_at, e.first_seen, e.created_at
FROM entries e
JOIN feeds f ON f.id = e.feed_id
WHERE f.is_active = TRUE
ORDER BY e.published_at DESC
LIMIT $1`, limit)
}

func (r *EntryRepo) RecentSince(ctx context.Context, since time.Time) ([]entity.Entry, error) {
	return r.queryEntries(ctx, `
SELECT id, feed_id, guid, url, title, author, content, summary, published_at, updated_at, first_seen, created_at
FROM entries
WHERE published_at >= $1
ORDER BY published_at DESC`, since)
}

func (r *EntryRepo) RecentGlobal(ctx context.Context, limit int) ([]entity.Entry, error) {
	return r.queryEntries(ctx, `
SELECT id, feed_id, guid, url, title, author, content, summary, published_at, updated_at, first_seen, created_at
FROM entries
ORDER BY published_at DESC
LIMIT $1`, limit)
}

func (r *EntryRepo) GetByIDs(ctx context.Context, ids []int64) ([]entity.Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders, args := intPlaceholders(ids)
	query := fmt.Sprintf(`
SELECT id, feed_id, guid, url, title, author, content, summary, published_at, updated_at, first_seen, created_at
FROM entries WHERE id IN (%s)`, placeholders)
	return r.queryEntries(ctx, query, args...)
}

// DeletionCandidates returns ids that are either older than cutoff or,
// per feed, beyond the perFeedCap most recent entries, while never
// touching the globally most recent globalFloor entries regardless of
// feed or age.
func (r *EntryRepo) DeletionCandidates(ctx context.Context, cutoff time.Time, perFeedCap int, globalFloor int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
WITH ranked AS (
  SELECT id, feed_id, published_at,
         row_number() OVER (PARTITION BY feed_id ORDER BY published_at DESC) AS feed_rank,
         row_number() OVER (ORDER BY published_at DESC) AS global_rank
  FROM entries
)
SELECT id FROM ranked
WHERE (published_at < $1 OR feed_rank > $2) AND global_rank > $3`, cutoff, perFeedCap, globalFloor)
	if err != nil {
		return nil, fmt.Errorf("deletion candidates: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deletion candidate: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *EntryRepo) DeleteByIDs(ctx context.Context, ids []int64, batchSize int) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = len(ids)
	}

	var total int64
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]
		placeholders, args := intPlaceholders(batch)
		res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM entries WHERE id IN (%s)`, placeholders), args...)
		if err != nil {
			return total, fmt.Errorf("delete entries batch: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected: %w", err)
		}
		total += n
	}
	return total, nil
}

func (r *EntryRepo) queryEntries(ctx context.Context, query string, args ...interface{}) ([]entity.Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []entity.Entry
	for rows.Next() {
		var e entity.Entry
		if err := rows.Scan(
			&e.ID, &e.FeedID, &e.GUID, &e.URL, &e.Title, &e.Author, &e.Content, &e.Summary,
			&e.PublishedAt, &e.UpdatedAt, &e.FirstSeen, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func intPlaceholders(ids []int64) (string, []interface{}) {
	parts := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	return strings.Join(parts, ", "), args
}
