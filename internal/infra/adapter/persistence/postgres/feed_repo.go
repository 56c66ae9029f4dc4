// Package postgres implements the Relational Store and Vector Store
// repositories against PostgreSQL via database/sql and pgx/v5.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"planetcf/internal/domain/entity"
	"planetcf/internal/repository"
)

// FeedRepo is the database/sql-backed FeedRepository implementation.
type FeedRepo struct {
	db dbExecutor
}

func NewFeedRepo(db dbExecutor) *FeedRepo {
	return &FeedRepo{db: db}
}

func (r *FeedRepo) Get(ctx context.Context, id int64) (*entity.Feed, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, url, title, site_url, author_name, author_email, etag, last_modified,
       fetch_error, fetch_error_count, consecutive_failures,
       last_fetch_at, last_success_at, last_entry_at, is_active, created_at, updated_at
FROM feeds WHERE id = $1`, id)
	f, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get feed %d: %w", id, err)
	}
	return f, nil
}

func (r *FeedRepo) ListActive(ctx context.Context) ([]*entity.Feed, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, url, title, site_url, author_name, author_email, etag, last_modified,
       fetch_error, fetch_error_count, consecutive_failures,
       last_fetch_at, last_success_at, last_entry_at, is_active, created_at, updated_at
FROM feeds WHERE is_active = TRUE ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active feeds: %w", err)
	}
	defer rows.Close()

	var out []*entity.Feed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feed: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *FeedRepo) RewriteURL(ctx context.Context, id int64, newURL string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE feeds SET url = $1, updated_at = now() WHERE id = $2`, newURL, id)
	if err != nil {
		return fmt.Errorf("rewrite feed url %d: %w", id, err)
	}
	return nil
}

func (r *FeedRepo) ApplyHealthUpdate(ctx context.Context, id int64, u repository.FeedHealthUpdate) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE feeds SET
  etag = $1,
  last_modified = $2,
  fetch_error = $3,
  consecutive_failures = $4,
  last_fetch_at = $5,
  last_success_at = COALESCE($6, last_success_at),
  last_entry_at = COALESCE($7, last_entry_at),
  is_active = CASE WHEN $8 THEN FALSE ELSE is_active END,
  fetch_error_count = CASE WHEN $3 <> '' THEN fetch_error_count + 1 ELSE fetch_error_count END,
  updated_at = now()
WHERE id = $9`,
		u.ETag, u.LastModified, u.FetchError, u.ConsecutiveFailures, u.LastFetchAt,
		nullTime(u.LastSuccessAt), nullTime(u.LastEntryAt), u.Deactivate, id)
	if err != nil {
		return fmt.Errorf("apply health update feed %d: %w", id, err)
	}
	return nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFeed(row rowScanner) (*entity.Feed, error) {
	var f entity.Feed
	var etag, lastModified, fetchError sql.NullString
	var lastFetchAt, lastSuccessAt, lastEntryAt sql.NullTime

	err := row.Scan(
		&f.ID, &f.URL, &f.Title, &f.SiteURL, &f.AuthorName, &f.AuthorEmail,
		&etag, &lastModified, &fetchError, &f.FetchErrorCount, &f.ConsecutiveFailures,
		&lastFetchAt, &lastSuccessAt, &lastEntryAt, &f.IsActive, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.ETag = etag.String
	f.LastModified = lastModified.String
	f.FetchError = fetchError.String
	if lastFetchAt.Valid {
		f.LastFetchAt = &lastFetchAt.Time
	}
	if lastSuccessAt.Valid {
		f.LastSuccessAt = &lastSuccessAt.Time
	}
	if lastEntryAt.Valid {
		f.LastEntryAt = &lastEntryAt.Time
	}
	return &f, nil
}
