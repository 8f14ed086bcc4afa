package slo

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets define the service level objectives for the pipeline.
// These targets are used to measure and monitor worker reliability.
const (
	// RunSuccessSLO defines the target ratio of successful pipeline runs.
	RunSuccessSLO = 0.99

	// FreshnessSLO defines the maximum acceptable age of the last successful
	// run in seconds (three poll intervals at the default schedule).
	FreshnessSLO = 1800.0

	// RunDurationSLO defines the target duration for one full pipeline run
	// in seconds.
	RunDurationSLO = 60.0
)

// SLO tracking metrics
// These gauges are updated after every run so scrapes can compare the current
// values against the targets above.
var (
	// SLORunSuccessRatio tracks the lifetime ratio of successful runs (0-1)
	SLORunSuccessRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_pipeline_run_success_ratio",
			Help: "Ratio of successful pipeline runs (0-1), target: 0.99",
		},
	)

	// SLOFreshnessSeconds tracks seconds since the last successful run
	SLOFreshnessSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_pipeline_freshness_seconds",
			Help: "Seconds since the last successful pipeline run, target: < 1800",
		},
	)

	// SLOLastRunDuration tracks the duration of the most recent run in seconds
	SLOLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_pipeline_last_run_duration_seconds",
			Help: "Duration of the most recent pipeline run in seconds, target: < 60",
		},
	)
)

// Tracker accumulates run outcomes and publishes the SLO gauges.
// It is safe for concurrent use.
type Tracker struct {
	mu          sync.Mutex
	total       int64
	succeeded   int64
	lastSuccess time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// RecordRun records the outcome of one pipeline run and updates the gauges.
func (t *Tracker) RecordRun(success bool, duration time.Duration, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total++
	if success {
		t.succeeded++
		t.lastSuccess = now
	}

	SLORunSuccessRatio.Set(float64(t.succeeded) / float64(t.total))
	SLOLastRunDuration.Set(duration.Seconds())
	if !t.lastSuccess.IsZero() {
		SLOFreshnessSeconds.Set(now.Sub(t.lastSuccess).Seconds())
	}
}

// ObserveFreshness refreshes the freshness gauge between runs. Call it
// periodically so a stalled scheduler is visible before the next run.
func (t *Tracker) ObserveFreshness(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lastSuccess.IsZero() {
		return
	}
	SLOFreshnessSeconds.Set(now.Sub(t.lastSuccess).Seconds())
}

// SuccessRatio returns the lifetime success ratio, or 1 when no runs have
// completed yet.
func (t *Tracker) SuccessRatio() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.total == 0 {
		return 1
	}
	return float64(t.succeeded) / float64(t.total)
}
