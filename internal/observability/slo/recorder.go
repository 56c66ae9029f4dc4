package slo

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Recorder accumulates a rolling window of request outcomes and flushes
// availability/latency/error-rate ratios into the SLO gauges on a timer,
// the way an access-log middleware can observe each request without
// computing percentiles inline.
type Recorder struct {
	mu        sync.Mutex
	durations []float64
	total     int
	errors    int
}

// NewRecorder returns an empty Recorder ready to have requests reported
// to it via Observe.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Observe records one request's outcome. statusCode >= 500 counts
// against the error-rate and availability ratios.
func (r *Recorder) Observe(statusCode int, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	if statusCode >= 500 {
		r.errors++
	}
	r.durations = append(r.durations, duration.Seconds())
}

// Run flushes accumulated observations into the SLO gauges every
// interval until ctx is cancelled. Intended to run as its own goroutine.
func (r *Recorder) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.flush()
		}
	}
}

func (r *Recorder) flush() {
	r.mu.Lock()
	total, errors, durations := r.total, r.errors, r.durations
	r.total, r.errors, r.durations = 0, 0, nil
	r.mu.Unlock()

	if total == 0 {
		return
	}

	UpdateAvailability(float64(total-errors) / float64(total))
	UpdateErrorRate(float64(errors) / float64(total))

	sort.Float64s(durations)
	UpdateLatencyP95(percentile(durations, 0.95))
	UpdateLatencyP99(percentile(durations, 0.99))
}

// percentile returns the p-th percentile (0..1) of a sorted slice,
// nearest-rank, or 0 if sorted is empty.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p*float64(len(sorted))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
