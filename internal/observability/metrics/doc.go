// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes cross-cutting application metrics including:
//   - Catalog ingestion metrics (items discovered, poll outcomes)
//   - Circuit breaker state per upstream target
//   - Database connection pool statistics
//
// Component-local metrics (pipeline runs, push dispatch, fetch attempts) live
// next to the code that records them; this package only carries the metrics
// that span component boundaries.
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "manga-notify/internal/observability/metrics"
//
//	func poll(ctx context.Context) {
//	    items, err := catalog.RecentItems(ctx, limit)
//	    metrics.RecordCatalogPoll(err == nil)
//	    metrics.RecordItemsDiscovered("catalog", len(items))
//	}
package metrics
