package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planetcf_fetcher_jobs_processed_total",
		Help: "Total Feed Jobs processed by terminal outcome",
	}, []string{"outcome"})

	jobDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "planetcf_fetcher_job_duration_seconds",
		Help:    "Duration of one Feed Job's fetch-parse-upsert pipeline",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
	})

	entriesUpsertedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planetcf_fetcher_entries_upserted_total",
		Help: "Total entries upserted by whether they were inserted or updated",
	}, []string{"kind"})

	entriesSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planetcf_fetcher_entries_skipped_total",
		Help: "Total feed items skipped before upsert, by reason",
	}, []string{"reason"})

	feedHealthTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planetcf_fetcher_feed_health_transitions_total",
		Help: "Total Feed health-state transitions observed after a fetch attempt",
	}, []string{"state"})
)
