package worker

import (
	"fmt"
	"log/slog"
	"time"

	"planetcf/internal/pkg/config"
)

// SchedulerConfig holds the configuration for the Scheduler component: the
// two cron schedules (fan-out and retention), their shared timezone and
// per-run timeout, and the retention sweep's tunables.
//
// Configuration sources:
//   - Environment variables (loaded via LoadSchedulerConfigFromEnv)
//   - Default values (provided by DefaultSchedulerConfig)
//
// All fields have sensible defaults and validation rules so the Scheduler
// can run safely even with invalid or missing configuration.
//
// Example usage:
//
//	// Use defaults
//	cfg := DefaultSchedulerConfig()
//
//	// Load from environment with fallback
//	cfg, err := LoadSchedulerConfigFromEnv(logger, metrics)
//	if err != nil {
//	    // This should never happen with fail-open strategy
//	    log.Fatal("Unexpected configuration error: %v", err)
//	}
type SchedulerConfig struct {
	// FanoutCron is the cron expression for the fan-out job, which
	// publishes one Feed Job per active feed.
	// Default: "@hourly"
	FanoutCron string

	// RetentionCron is the cron expression for the retention sweep job.
	// Offset a few minutes from FanoutCron by default so the two don't
	// compete for database connections at the same instant.
	// Default: "15 * * * *" (hourly, at :15)
	RetentionCron string

	// Timezone is the IANA timezone name both cron schedules run in.
	// Default: "UTC"
	Timezone string

	// RunTimeout bounds a single fan-out or retention run.
	// Default: 300s
	RunTimeout time.Duration

	// HealthPort is the port number for the health check HTTP server.
	// Default: 9091
	HealthPort int

	// RetentionDays is the age, in days, beyond which an entry becomes a
	// deletion candidate (unless it falls within RetentionMaxPerFeed or
	// FallbackFloor).
	// Default: 90
	RetentionDays int

	// RetentionMaxPerFeed is the number of most-recent entries kept per
	// feed regardless of age.
	// Default: 100
	RetentionMaxPerFeed int

	// FallbackFloor is the number of most-recent entries, globally, the
	// retention sweep never deletes below — it backs the Renderer's
	// fallback-entries display window.
	// Default: 50
	FallbackFloor int

	// DeleteBatchSize bounds how many entry ids are deleted per SQL
	// statement during a retention sweep.
	// Default: 500
	DeleteBatchSize int
}

// DefaultSchedulerConfig returns a SchedulerConfig with the spec-mandated
// default values.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		FanoutCron:          "@hourly",
		RetentionCron:       "15 * * * *",
		Timezone:            "UTC",
		RunTimeout:          300 * time.Second,
		HealthPort:          9091,
		RetentionDays:       90,
		RetentionMaxPerFeed: 100,
		FallbackFloor:       50,
		DeleteBatchSize:     500,
	}
}

// Validate checks if the configuration values are valid, aggregating every
// violation into a single error rather than failing on the first.
func (c *SchedulerConfig) Validate() error {
	var errs []error

	if err := config.ValidateCronSchedule(c.FanoutCron); err != nil {
		errs = append(errs, fmt.Errorf("fanout cron: %w", err))
	}
	if err := config.ValidateCronSchedule(c.RetentionCron); err != nil {
		errs = append(errs, fmt.Errorf("retention cron: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidateDuration(c.RunTimeout, time.Second, time.Hour); err != nil {
		errs = append(errs, fmt.Errorf("run timeout: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}
	if err := config.ValidateIntRange(c.RetentionDays, 1, 3650); err != nil {
		errs = append(errs, fmt.Errorf("retention days: %w", err))
	}
	if err := config.ValidateIntRange(c.RetentionMaxPerFeed, 0, 100000); err != nil {
		errs = append(errs, fmt.Errorf("retention max per feed: %w", err))
	}
	if err := config.ValidateIntRange(c.FallbackFloor, 0, 100000); err != nil {
		errs = append(errs, fmt.Errorf("fallback floor: %w", err))
	}
	if err := config.ValidateIntRange(c.DeleteBatchSize, 1, 10000); err != nil {
		errs = append(errs, fmt.Errorf("delete batch size: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadSchedulerConfigFromEnv loads Scheduler configuration from environment
// variables with validation and automatic fallback to default values,
// following the fail-open strategy used across the project's workers: a
// bad value never aborts startup, it just logs a warning and increments a
// fallback metric.
//
// Environment variables:
//   - SCHEDULER_CRON: fan-out cron expression (default "@hourly")
//   - RETENTION_CRON: retention cron expression (default "15 * * * *")
//   - SCHEDULER_TIMEZONE: IANA timezone (default "UTC")
//   - SCHEDULER_TIMEOUT_SECONDS: per-run timeout in seconds (default 300)
//   - SCHEDULER_HEALTH_PORT: health server port (default 9091)
//   - RETENTION_DAYS: entry age cutoff in days (default 90)
//   - RETENTION_MAX_PER_FEED: per-feed keep count (default 100)
//   - FALLBACK_ENTRIES: global floor entries are never deleted below (default 50)
//   - RETENTION_BATCH_SIZE: delete statement batch size (default 500)
//
// Returns a valid configuration and a nil error; invalid values fall back
// to defaults rather than failing startup.
func LoadSchedulerConfigFromEnv(logger *slog.Logger, metrics *SchedulerMetrics) (*SchedulerConfig, error) {
	cfg := DefaultSchedulerConfig()
	fallbackApplied := false

	note := func(field string, warnings []string) {
		fallbackApplied = true
		metrics.RecordValidationError(field)
		metrics.RecordFallback(field, "default")
		for _, warning := range warnings {
			logger.Warn("scheduler configuration fallback applied", slog.String("field", field), slog.String("warning", warning))
		}
	}

	strResult := config.LoadEnvWithFallback("SCHEDULER_CRON", cfg.FanoutCron, config.ValidateCronSchedule)
	cfg.FanoutCron = strResult.Value.(string)
	if strResult.FallbackApplied {
		note("fanout_cron", strResult.Warnings)
	}

	strResult = config.LoadEnvWithFallback("RETENTION_CRON", cfg.RetentionCron, config.ValidateCronSchedule)
	cfg.RetentionCron = strResult.Value.(string)
	if strResult.FallbackApplied {
		note("retention_cron", strResult.Warnings)
	}

	strResult = config.LoadEnvWithFallback("SCHEDULER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = strResult.Value.(string)
	if strResult.FallbackApplied {
		note("timezone", strResult.Warnings)
	}

	intResult := config.LoadEnvInt("SCHEDULER_HEALTH_PORT", cfg.HealthPort, func(v int) error { return config.ValidateIntRange(v, 1024, 65535) })
	cfg.HealthPort = intResult.Value.(int)
	if intResult.FallbackApplied {
		note("health_port", intResult.Warnings)
	}

	intResult = config.LoadEnvInt("RETENTION_DAYS", cfg.RetentionDays, func(v int) error { return config.ValidateIntRange(v, 1, 3650) })
	cfg.RetentionDays = intResult.Value.(int)
	if intResult.FallbackApplied {
		note("retention_days", intResult.Warnings)
	}

	intResult = config.LoadEnvInt("RETENTION_MAX_PER_FEED", cfg.RetentionMaxPerFeed, func(v int) error { return config.ValidateIntRange(v, 0, 100000) })
	cfg.RetentionMaxPerFeed = intResult.Value.(int)
	if intResult.FallbackApplied {
		note("retention_max_per_feed", intResult.Warnings)
	}

	intResult = config.LoadEnvInt("FALLBACK_ENTRIES", cfg.FallbackFloor, func(v int) error { return config.ValidateIntRange(v, 0, 100000) })
	cfg.FallbackFloor = intResult.Value.(int)
	if intResult.FallbackApplied {
		note("fallback_floor", intResult.Warnings)
	}

	intResult = config.LoadEnvInt("RETENTION_BATCH_SIZE", cfg.DeleteBatchSize, func(v int) error { return config.ValidateIntRange(v, 1, 10000) })
	cfg.DeleteBatchSize = intResult.Value.(int)
	if intResult.FallbackApplied {
		note("delete_batch_size", intResult.Warnings)
	}

	// SCHEDULER_TIMEOUT_SECONDS is an integer-seconds env var mapped onto
	// a time.Duration field, so it goes through LoadEnvInt rather than
	// LoadEnvDuration.
	secResult := config.LoadEnvInt("SCHEDULER_TIMEOUT_SECONDS", int(cfg.RunTimeout/time.Second), func(v int) error {
		return config.ValidateIntRange(v, 1, 3600)
	})
	cfg.RunTimeout = time.Duration(secResult.Value.(int)) * time.Second
	if secResult.FallbackApplied {
		note("run_timeout", secResult.Warnings)
	}

	metrics.SetFallbackActive("", fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg, nil
}
