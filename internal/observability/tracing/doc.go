// Package tracing provides OpenTelemetry tracing integration.
//
// This package provides distributed tracing for the notification pipeline:
// spans around catalog polls, matching, and push dispatch, plus HTTP
// middleware for the operational endpoints.
//
// Example usage:
//
//	import "manga-notify/internal/observability/tracing"
//
//	func main() {
//	    shutdown, err := tracing.Setup(context.Background(), "manga-notify-worker")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer shutdown(context.Background())
//	}
//
//	func runJob(ctx context.Context) {
//	    ctx, span := tracing.GetTracer().Start(ctx, "pipeline-run")
//	    defer span.End()
//	}
package tracing
