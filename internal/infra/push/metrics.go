package push

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// dispatchTotal tracks per-subscription delivery attempts by outcome
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_dispatch_total",
			Help: "Total number of per-subscription push delivery attempts",
		},
		[]string{"outcome"}, // outcome: success|expired|error
	)
)
