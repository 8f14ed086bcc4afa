package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for pipeline monitoring
var (
	// pipelineRunsTotal tracks pipeline runs per outcome
	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_pipeline_runs_total",
			Help: "Total number of notification pipeline runs",
		},
		[]string{"outcome"}, // outcome: success|partial|rejected
	)

	// pipelineMatchedItems tracks items that matched at least one criteria
	pipelineMatchedItems = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_matched_items_total",
			Help: "Total number of items matched to at least one criteria",
		},
	)

	// pipelinePushSent tracks payloads delivered to at least one subscription
	pipelinePushSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_push_sent_total",
			Help: "Total number of push payloads delivered",
		},
	)

	// pipelineSuppressedTotal tracks payloads withheld from dispatch per reason
	pipelineSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_push_suppressed_total",
			Help: "Total number of push payloads suppressed before dispatch",
		},
		[]string{"reason"}, // reason: no_settings|quiet_hours|daily_cap
	)

	// pipelineRunDuration tracks end-to-end pipeline run duration
	pipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notify_pipeline_run_duration_seconds",
			Help:    "Notification pipeline run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)
)

func observeRun(outcome string, matched, sent int, start time.Time) {
	pipelineRunsTotal.WithLabelValues(outcome).Inc()
	pipelineMatchedItems.Add(float64(matched))
	pipelinePushSent.Add(float64(sent))
	pipelineRunDuration.Observe(time.Since(start).Seconds())
}
