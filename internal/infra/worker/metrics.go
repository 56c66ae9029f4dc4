package worker

import (
	"planetcf/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SchedulerMetrics provides Prometheus metrics for the Scheduler component.
// It embeds the standard ConfigMetrics for configuration monitoring and adds
// metrics for the two jobs the Scheduler runs: fan-out and retention.
//
// Embedded metrics (from ConfigMetrics):
//   - scheduler_config_load_timestamp
//   - scheduler_config_validation_errors_total
//   - scheduler_config_fallbacks_total
//   - scheduler_config_fallback_active
//
// Scheduler-specific metrics:
//   - scheduler_fanout_runs_total: fan-out runs by status (success/failure)
//   - scheduler_fanout_duration_seconds: fan-out run duration histogram
//   - scheduler_fanout_feeds_published_total: feed jobs published
//   - scheduler_fanout_last_success_timestamp: unix time of last successful fan-out
//   - scheduler_retention_runs_total: retention runs by status (success/failure)
//   - scheduler_retention_duration_seconds: retention run duration histogram
//   - scheduler_retention_entries_deleted_total: entries deleted
//   - scheduler_retention_vector_delete_failures_total: best-effort vector deletes that failed
//   - scheduler_retention_last_success_timestamp: unix time of last successful retention sweep
type SchedulerMetrics struct {
	*config.ConfigMetrics

	FanoutRunsTotal            *prometheus.CounterVec
	FanoutDurationSeconds      prometheus.Histogram
	FanoutFeedsPublishedTotal  prometheus.Counter
	FanoutLastSuccessTimestamp prometheus.Gauge

	RetentionRunsTotal               *prometheus.CounterVec
	RetentionDurationSeconds         prometheus.Histogram
	RetentionEntriesDeletedTotal     prometheus.Counter
	RetentionVectorDeleteFailures    prometheus.Counter
	RetentionLastSuccessTimestamp    prometheus.Gauge
}

// NewSchedulerMetrics creates a new SchedulerMetrics instance with all
// metrics initialized. Metrics are auto-registered via promauto; call
// MustRegister for API symmetry with the rest of the project's workers.
func NewSchedulerMetrics() *SchedulerMetrics {
	return &SchedulerMetrics{
		ConfigMetrics: config.NewConfigMetrics("scheduler"),

		FanoutRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_fanout_runs_total",
			Help: "Total fan-out job runs by status (success/failure)",
		}, []string{"status"}),

		FanoutDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scheduler_fanout_duration_seconds",
			Help:    "Duration of a fan-out run in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
		}),

		FanoutFeedsPublishedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_fanout_feeds_published_total",
			Help: "Total Feed Jobs published across all fan-out runs",
		}),

		FanoutLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "scheduler_fanout_last_success_timestamp",
			Help: "Unix timestamp of the last successful fan-out run",
		}),

		RetentionRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_retention_runs_total",
			Help: "Total retention sweep runs by status (success/failure)",
		}, []string{"status"}),

		RetentionDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scheduler_retention_duration_seconds",
			Help:    "Duration of a retention sweep in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
		}),

		RetentionEntriesDeletedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_retention_entries_deleted_total",
			Help: "Total entries deleted across all retention sweeps",
		}),

		RetentionVectorDeleteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_retention_vector_delete_failures_total",
			Help: "Total best-effort vector deletions that failed and will retry next sweep",
		}),

		RetentionLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "scheduler_retention_last_success_timestamp",
			Help: "Unix timestamp of the last successful retention sweep",
		}),
	}
}

// MustRegister is a no-op; metrics are auto-registered via promauto in
// NewSchedulerMetrics. Kept for API symmetry with the rest of the
// project's worker metrics types.
func (m *SchedulerMetrics) MustRegister() {}

// RecordFanoutRun increments the fan-out run counter for the given status.
func (m *SchedulerMetrics) RecordFanoutRun(status string) {
	m.FanoutRunsTotal.WithLabelValues(status).Inc()
}

// RecordFanoutDuration observes a fan-out run's duration in seconds.
func (m *SchedulerMetrics) RecordFanoutDuration(seconds float64) {
	m.FanoutDurationSeconds.Observe(seconds)
}

// RecordFeedsPublished adds to the total feeds-published counter.
func (m *SchedulerMetrics) RecordFeedsPublished(count int) {
	m.FanoutFeedsPublishedTotal.Add(float64(count))
}

// RecordFanoutSuccess records the current time as the last successful fan-out.
func (m *SchedulerMetrics) RecordFanoutSuccess() {
	m.FanoutLastSuccessTimestamp.SetToCurrentTime()
}

// RecordRetentionRun increments the retention run counter for the given status.
func (m *SchedulerMetrics) RecordRetentionRun(status string) {
	m.RetentionRunsTotal.WithLabelValues(status).Inc()
}

// RecordRetentionDuration observes a retention sweep's duration in seconds.
func (m *SchedulerMetrics) RecordRetentionDuration(seconds float64) {
	m.RetentionDurationSeconds.Observe(seconds)
}

// RecordEntriesDeleted adds to the total entries-deleted counter.
func (m *SchedulerMetrics) RecordEntriesDeleted(count int64) {
	m.RetentionEntriesDeletedTotal.Add(float64(count))
}

// RecordVectorDeleteFailure increments the best-effort vector-delete
// failure counter.
func (m *SchedulerMetrics) RecordVectorDeleteFailure() {
	m.RetentionVectorDeleteFailures.Inc()
}

// RecordRetentionSuccess records the current time as the last successful
// retention sweep.
func (m *SchedulerMetrics) RecordRetentionSuccess() {
	m.RetentionLastSuccessTimestamp.SetToCurrentTime()
}
