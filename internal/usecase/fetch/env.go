package fetch

import (
	"time"

	"planetcf/internal/pkg/config"
)

// LoadConfigFromEnv loads the Fetcher's Config from environment variables,
// falling back to DefaultConfig's values on any missing or invalid entry.
//
// Environment variables:
//   - USER_AGENT: outbound User-Agent header
//   - MAX_ENTRIES_PER_FEED: per-fetch ingest ceiling (default 50)
//   - HTTP_TIMEOUT_SECONDS: single HTTP call budget (default 30)
//   - FEED_TIMEOUT_SECONDS: whole-message processing budget (default 60)
//   - FEED_FAILURE_THRESHOLD: consecutive failures before Degraded->Unhealthy (default 3)
//   - FEED_AUTO_DEACTIVATE_THRESHOLD: consecutive failures before a feed is deactivated (default 10)
//   - FETCHER_CONCURRENCY: number of Feed Jobs processed at once (default 16)
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.UserAgent = config.LoadEnvString("USER_AGENT", cfg.UserAgent)

	intResult := config.LoadEnvInt("MAX_ENTRIES_PER_FEED", cfg.MaxEntriesPerFeed, func(v int) error {
		return config.ValidateIntRange(v, 1, 10000)
	})
	cfg.MaxEntriesPerFeed = intResult.Value.(int)

	// *_TIMEOUT_SECONDS are plain integer seconds, not Go duration strings,
	// so they go through LoadEnvInt rather than LoadEnvDuration.
	secResult := config.LoadEnvInt("HTTP_TIMEOUT_SECONDS", int(cfg.HTTPTimeout/time.Second), func(v int) error {
		return config.ValidateIntRange(v, 1, 3600)
	})
	cfg.HTTPTimeout = time.Duration(secResult.Value.(int)) * time.Second

	secResult = config.LoadEnvInt("FEED_TIMEOUT_SECONDS", int(cfg.FeedTimeout/time.Second), func(v int) error {
		return config.ValidateIntRange(v, 1, 3600)
	})
	cfg.FeedTimeout = time.Duration(secResult.Value.(int)) * time.Second

	intResult = config.LoadEnvInt("FEED_FAILURE_THRESHOLD", cfg.FailureThreshold, func(v int) error {
		return config.ValidateIntRange(v, 1, 1000)
	})
	cfg.FailureThreshold = intResult.Value.(int)

	intResult = config.LoadEnvInt("FEED_AUTO_DEACTIVATE_THRESHOLD", cfg.DeactivateThreshold, func(v int) error {
		return config.ValidateIntRange(v, 1, 1000)
	})
	cfg.DeactivateThreshold = intResult.Value.(int)

	intResult = config.LoadEnvInt("FETCHER_CONCURRENCY", cfg.Concurrency, func(v int) error {
		return config.ValidateIntRange(v, 1, 1024)
	})
	cfg.Concurrency = intResult.Value.(int)

	return cfg
}
