package repository

import (
	"context"
	"time"

	"planetcf/internal/domain/entity"
)

// FeedHealthUpdate carries the mutations the Fetcher applies to a Feed
// after one fetch attempt, success or failure.
type FeedHealthUpdate struct {
	ETag                string
	LastModified        string
	FetchError          string
	ConsecutiveFailures int
	LastFetchAt         time.Time
	LastSuccessAt       *time.Time
	LastEntryAt         *time.Time
	Deactivate          bool
}

// FeedRepository is the Relational Store's Feed-facing surface. Only the
// Fetcher (health/URL updates) and the Scheduler (read of active feeds)
// write or read here; admin CRUD is an external collaborator.
type FeedRepository interface {
	Get(ctx context.Context, id int64) (*entity.Feed, error)
	ListActive(ctx context.Context) ([]*entity.Feed, error)

	// RewriteURL updates a feed's stored URL after a permanent redirect
	// (301/308) was followed to a successful fetch.
	RewriteURL(ctx context.Context, id int64, newURL string) error

	// ApplyHealthUpdate persists the post-attempt health mutation
	// atomically with respect to concurrent re-deliveries of the same
	// feed.
	ApplyHealthUpdate(ctx context.Context, id int64, update FeedHealthUpdate) error
}
