// Package observability provides production-grade observability infrastructure
// including structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// This package centralizes observability concerns to enable:
//   - Run tracing across pipeline stages
//   - Structured logging with context propagation
//   - Prometheus metrics for monitoring
//   - SLO tracking for the scheduled pipeline
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics registry and recorders
//   - tracing: OpenTelemetry tracing integration
//   - slo: Service level objective targets and trackers
//
// Example usage:
//
//	import (
//	    "manga-notify/internal/observability/logging"
//	    "manga-notify/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("application started")
//
//	    metrics.RecordItemsDiscovered("catalog", 10)
//	}
package observability
