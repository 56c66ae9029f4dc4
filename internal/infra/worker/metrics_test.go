package worker

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewSchedulerMetrics(t *testing.T) {
	// Use the shared package instance to avoid duplicate Prometheus
	// registration across the package's test functions.
	metrics := globalTestSchedulerMetrics

	if metrics == nil {
		t.Fatal("NewSchedulerMetrics returned nil")
	}
	if metrics.ConfigMetrics == nil {
		t.Error("ConfigMetrics is nil")
	}
	if metrics.FanoutRunsTotal == nil {
		t.Error("FanoutRunsTotal is nil")
	}
	if metrics.FanoutDurationSeconds == nil {
		t.Error("FanoutDurationSeconds is nil")
	}
	if metrics.FanoutFeedsPublishedTotal == nil {
		t.Error("FanoutFeedsPublishedTotal is nil")
	}
	if metrics.FanoutLastSuccessTimestamp == nil {
		t.Error("FanoutLastSuccessTimestamp is nil")
	}
	if metrics.RetentionRunsTotal == nil {
		t.Error("RetentionRunsTotal is nil")
	}
	if metrics.RetentionDurationSeconds == nil {
		t.Error("RetentionDurationSeconds is nil")
	}
	if metrics.RetentionEntriesDeletedTotal == nil {
		t.Error("RetentionEntriesDeletedTotal is nil")
	}
	if metrics.RetentionVectorDeleteFailures == nil {
		t.Error("RetentionVectorDeleteFailures is nil")
	}
	if metrics.RetentionLastSuccessTimestamp == nil {
		t.Error("RetentionLastSuccessTimestamp is nil")
	}

	// Should not panic (metrics are auto-registered via promauto)
	metrics.MustRegister()
}

func TestSchedulerMetrics_RecordFanoutRun(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_scheduler_fanout_runs_total",
		Help: "Test counter",
	}, []string{"status"})

	metrics := &SchedulerMetrics{FanoutRunsTotal: counter}

	metrics.RecordFanoutRun("success")
	metrics.RecordFanoutRun("success")
	metrics.RecordFanoutRun("failure")

	if got := testutil.ToFloat64(metrics.FanoutRunsTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("success count = %f, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.FanoutRunsTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("failure count = %f, want 1", got)
	}
}

func TestSchedulerMetrics_RecordFanoutDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_scheduler_fanout_duration_seconds",
		Help:    "Test histogram",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
	})
	reg.MustRegister(histogram)

	metrics := &SchedulerMetrics{FanoutDurationSeconds: histogram}
	metrics.RecordFanoutDuration(1.5)
	metrics.RecordFanoutDuration(12.0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "test_scheduler_fanout_duration_seconds" {
			found = true
			if mf.GetMetric()[0].GetHistogram().GetSampleCount() != 2 {
				t.Errorf("sample count = %d, want 2", mf.GetMetric()[0].GetHistogram().GetSampleCount())
			}
		}
	}
	if !found {
		t.Error("fanout duration histogram not found")
	}
}

func TestSchedulerMetrics_RecordFeedsPublished(t *testing.T) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_scheduler_fanout_feeds_published_total",
		Help: "Test counter",
	})
	metrics := &SchedulerMetrics{FanoutFeedsPublishedTotal: counter}

	metrics.RecordFeedsPublished(10)
	metrics.RecordFeedsPublished(5)

	if got := testutil.ToFloat64(metrics.FanoutFeedsPublishedTotal); got != 15 {
		t.Errorf("total feeds published = %f, want 15", got)
	}
}

func TestSchedulerMetrics_RecordFanoutSuccess(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_scheduler_fanout_last_success_timestamp",
		Help: "Test gauge",
	})
	metrics := &SchedulerMetrics{FanoutLastSuccessTimestamp: gauge}

	if got := testutil.ToFloat64(metrics.FanoutLastSuccessTimestamp); got != 0 {
		t.Errorf("initial value = %f, want 0", got)
	}
	metrics.RecordFanoutSuccess()
	if got := testutil.ToFloat64(metrics.FanoutLastSuccessTimestamp); got <= 0 {
		t.Errorf("expected positive timestamp, got %f", got)
	}
}

func TestSchedulerMetrics_RecordRetentionRun(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_scheduler_retention_runs_total",
		Help: "Test counter",
	}, []string{"status"})
	metrics := &SchedulerMetrics{RetentionRunsTotal: counter}

	metrics.RecordRetentionRun("success")
	metrics.RecordRetentionRun("failure")
	metrics.RecordRetentionRun("failure")

	if got := testutil.ToFloat64(metrics.RetentionRunsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("success count = %f, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.RetentionRunsTotal.WithLabelValues("failure")); got != 2 {
		t.Errorf("failure count = %f, want 2", got)
	}
}

func TestSchedulerMetrics_RecordEntriesDeletedAndVectorFailures(t *testing.T) {
	deleted := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_scheduler_retention_entries_deleted_total", Help: "t"})
	vecFail := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_scheduler_retention_vector_delete_failures_total", Help: "t"})

	metrics := &SchedulerMetrics{
		RetentionEntriesDeletedTotal:  deleted,
		RetentionVectorDeleteFailures: vecFail,
	}

	metrics.RecordEntriesDeleted(42)
	metrics.RecordEntriesDeleted(8)
	metrics.RecordVectorDeleteFailure()

	if got := testutil.ToFloat64(metrics.RetentionEntriesDeletedTotal); got != 50 {
		t.Errorf("entries deleted = %f, want 50", got)
	}
	if got := testutil.ToFloat64(metrics.RetentionVectorDeleteFailures); got != 1 {
		t.Errorf("vector delete failures = %f, want 1", got)
	}
}

func TestSchedulerMetrics_RecordRetentionSuccess(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_scheduler_retention_last_success_timestamp", Help: "t"})
	metrics := &SchedulerMetrics{RetentionLastSuccessTimestamp: gauge}

	metrics.RecordRetentionSuccess()
	if got := testutil.ToFloat64(metrics.RetentionLastSuccessTimestamp); got <= 0 {
		t.Errorf("expected positive timestamp, got %f", got)
	}
}

func TestSchedulerMetrics_ConcurrentAccess(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_scheduler_fanout_runs_concurrent",
		Help: "Test counter",
	}, []string{"status"})
	feedsCounter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_scheduler_fanout_feeds_concurrent",
		Help: "Test counter",
	})

	metrics := &SchedulerMetrics{
		FanoutRunsTotal:           counter,
		FanoutFeedsPublishedTotal: feedsCounter,
	}

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			metrics.RecordFanoutRun("success")
			metrics.RecordFeedsPublished(1)
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if got := testutil.ToFloat64(metrics.FanoutRunsTotal.WithLabelValues("success")); got != 10 {
		t.Errorf("success count = %f, want 10", got)
	}
	if got := testutil.ToFloat64(metrics.FanoutFeedsPublishedTotal); got != 10 {
		t.Errorf("total feeds published = %f, want 10", got)
	}
}
