package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"manga-notify/internal/observability/tracing"
	"manga-notify/internal/resilience/circuitbreaker"
)

// HealthResponse represents a simple health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// BreakerHealthResponse represents the health of every upstream circuit breaker.
type BreakerHealthResponse struct {
	Healthy  bool            `json:"healthy"`
	Breakers []BreakerStatus `json:"breakers"`
}

// BreakerStatus represents the state of a single circuit breaker target.
type BreakerStatus struct {
	Target              string `json:"target"`
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
}

// startMetricsServer starts the Prometheus metrics HTTP server.
// It runs in a separate goroutine and supports graceful shutdown via context.
//
// The server exposes the following endpoints:
//   - GET /metrics - Prometheus metrics endpoint
//   - GET /health - Simple liveness probe (always returns 200 OK)
//   - GET /health/breakers - Circuit breaker state per upstream target
//
// Environment variables:
//   - METRICS_PORT: Port to listen on (default: 9090)
func startMetricsServer(ctx context.Context, logger *slog.Logger, breakers *circuitbreaker.Registry) *http.Server {
	port := getMetricsPort()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	mux.HandleFunc("/health", healthHandler)
	if breakers != nil {
		mux.HandleFunc("/health/breakers", breakerHealthHandler(breakers))
	} else {
		mux.HandleFunc("/health/breakers", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": "breaker registry not initialized",
			})
		})
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      tracing.Middleware(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in background goroutine
	go func() {
		logger.Info("metrics server starting", slog.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		logger.Info("metrics server shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
		} else {
			logger.Info("metrics server stopped")
		}
	}()

	return server
}

// getMetricsPort retrieves the metrics server port from environment variable.
// Defaults to 9090 if not set or invalid.
func getMetricsPort() int {
	portStr := os.Getenv("METRICS_PORT")
	if portStr == "" {
		return 9090 // default
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return 9090 // default on invalid value
	}

	return port
}

// healthHandler handles GET /health requests (liveness probe).
// Always returns 200 OK with {"status": "healthy"}.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{Status: "healthy"})
}

// breakerHealthHandler creates a handler for GET /health/breakers.
// Returns 200 OK while every breaker is closed or half-open and
// 503 Service Unavailable once any breaker is open.
func breakerHealthHandler(breakers *circuitbreaker.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshots := breakers.Snapshots()

		statuses := make([]BreakerStatus, 0, len(snapshots))
		healthy := true

		for target, snap := range snapshots {
			statuses = append(statuses, BreakerStatus{
				Target:              target,
				State:               snap.State.String(),
				ConsecutiveFailures: snap.FailureCount,
			})

			if snap.State == circuitbreaker.StateOpen {
				healthy = false
			}
		}

		statusCode := http.StatusOK
		if !healthy {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(BreakerHealthResponse{
			Healthy:  healthy,
			Breakers: statuses,
		})
	}
}
