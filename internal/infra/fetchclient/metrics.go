package fetchclient

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"manga-notify/internal/resilience/circuitbreaker"
	"manga-notify/internal/resilience/retry"
)

// Prometheus metrics for outbound request monitoring
var (
	// fetchRequestsTotal tracks logical outbound requests per target and outcome
	fetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_requests_total",
			Help: "Total number of logical outbound requests",
		},
		[]string{"target", "method", "outcome"}, // outcome: success|not_found|upstream_error|circuit_open|error
	)

	// fetchRequestDuration tracks logical request duration including retries
	fetchRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetch_request_duration_seconds",
			Help:    "Outbound request duration in seconds, retries included",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60},
		},
		[]string{"target"},
	)
)

func observeRequest(target, method string, elapsed time.Duration, err error) {
	var httpErr *retry.HTTPError
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, circuitbreaker.ErrOpen):
		outcome = "circuit_open"
	case errors.As(err, &httpErr):
		outcome = "upstream_error"
	default:
		outcome = "error"
	}
	fetchRequestsTotal.WithLabelValues(target, method, outcome).Inc()
	fetchRequestDuration.WithLabelValues(target).Observe(elapsed.Seconds())
}
