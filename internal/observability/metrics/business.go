package metrics

import (
	"manga-notify/internal/resilience/circuitbreaker"
)

// RecordItemsDiscovered records how many items a catalog poll returned.
// This metric helps track ingestion volume and upstream publishing activity.
func RecordItemsDiscovered(source string, count int) {
	ItemsDiscoveredTotal.WithLabelValues(source).Add(float64(count))
}

// RecordCatalogPoll records the result of one catalog poll.
// Outcome is either "success" or "failure".
func RecordCatalogPoll(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	CatalogPollsTotal.WithLabelValues(outcome).Inc()
}

// UpdateBreakerStates publishes the current state of every registered circuit
// breaker. Call this after each job run so scrapes see fresh upstream health.
func UpdateBreakerStates(snapshots map[string]circuitbreaker.Snapshot) {
	for target, snap := range snapshots {
		BreakerState.WithLabelValues(target).Set(breakerStateValue(snap.State))
		BreakerConsecutiveFailures.WithLabelValues(target).Set(float64(snap.FailureCount))
	}
}

func breakerStateValue(s circuitbreaker.State) float64 {
	switch s {
	case circuitbreaker.StateHalfOpen:
		return 1
	case circuitbreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
