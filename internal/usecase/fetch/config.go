package fetch

import "time"

// Config holds the tunables of the per-message fetch pipeline. Every
// field has a spec-mandated default, applied by feedconfig.Load, and is
// re-read by the Fetcher on every message rather than cached, so a
// config reload (a new Fetcher built by the caller) is enough to pick up
// changes — no hot-reload plumbing inside the Fetcher itself.
type Config struct {
	// UserAgent is sent on every request, descriptive and contactable per
	// spec's Gatekeeper/HTTP fetch requirements.
	UserAgent string

	// MaxEntriesPerFeed bounds how many items from one parsed feed are
	// upserted; the remainder are skipped and logged, not erred.
	MaxEntriesPerFeed int

	// HTTPTimeout bounds a single outbound HTTP call (HTTP_TIMEOUT_SECONDS).
	HTTPTimeout time.Duration

	// FeedTimeout bounds the entire per-message process, including HTTP
	// fetch, parse, and all entry upserts (FEED_TIMEOUT_SECONDS).
	FeedTimeout time.Duration

	// FailureThreshold is N: consecutive failures at or beyond this
	// count move a Feed from Degraded to Unhealthy.
	FailureThreshold int

	// DeactivateThreshold is M: consecutive failures at or beyond this
	// count move a Feed to Inactive, stopping further fan-out.
	DeactivateThreshold int

	// DefaultRetryDelay is used for 429/5xx/network-error retries that
	// carry no explicit Retry-After.
	DefaultRetryDelay time.Duration

	// MaxErrorBytes truncates the stored fetch_error string.
	MaxErrorBytes int

	// Concurrency bounds the number of Feed Jobs processed at once by a
	// single Fetcher process (FETCHER_CONCURRENCY).
	Concurrency int

	// MaxBodyBytes caps the feed response body read into memory.
	MaxBodyBytes int64
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:           "PlanetCF/1.0 (+https://planet.example.com/about)",
		MaxEntriesPerFeed:   50,
		HTTPTimeout:         30 * time.Second,
		FeedTimeout:         60 * time.Second,
		FailureThreshold:    3,
		DeactivateThreshold: 10,
		DefaultRetryDelay:   5 * time.Minute,
		MaxErrorBytes:       500,
		Concurrency:         16,
		MaxBodyBytes:        10 << 20,
	}
}
