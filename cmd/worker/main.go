package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	pgRepo "manga-notify/internal/infra/adapter/persistence/postgres"
	"manga-notify/internal/infra/db"
	"manga-notify/internal/infra/fetchclient"
	"manga-notify/internal/infra/push"
	"manga-notify/internal/infra/source"
	workerPkg "manga-notify/internal/infra/worker"
	"manga-notify/internal/observability/logging"
	obsmetrics "manga-notify/internal/observability/metrics"
	"manga-notify/internal/observability/slo"
	"manga-notify/internal/observability/tracing"
	"manga-notify/internal/resilience/circuitbreaker"
	"manga-notify/internal/resilience/retry"
	"manga-notify/internal/usecase/match"
	"manga-notify/internal/usecase/notify"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	database := db.Open()
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	if err := db.MigrateUp(database); err != nil {
		logger.Error("schema migration failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, "manga-notify-worker")
	if err != nil {
		logger.Error("failed to set up tracing", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("tracing shutdown error", slog.Any("error", err))
		}
	}()

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Int("fetch_limit", workerConfig.FetchLimit),
		slog.Int("batch_size", workerConfig.BatchSize),
		slog.Duration("process_timeout", workerConfig.ProcessTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	prometheus.MustRegister(obsmetrics.NewDBStatsCollector(database))

	deps, err := buildPipeline(logger, database, workerConfig)
	if err != nil {
		logger.Error("failed to build pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	// Start metrics HTTP server
	startMetricsServer(ctx, logger, deps.breakers)

	// Start health check server
	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	startCronWorker(ctx, logger, deps, workerConfig, workerMetrics, healthServer)
}

// pipeline bundles the wired collaborators one scheduled run needs.
type pipeline struct {
	catalog  *source.Client
	notify   *notify.Service
	breakers *circuitbreaker.Registry
	slos     *slo.Tracker
}

// buildPipeline wires repositories, resilient clients and the pipeline
// services against one shared circuit breaker registry.
func buildPipeline(logger *slog.Logger, database *sql.DB, cfg *workerPkg.WorkerConfig) (*pipeline, error) {
	breakers := circuitbreaker.NewRegistry(circuitbreaker.Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		IsFailure:        fetchclient.IsCircuitFailure,
	})

	catalogBreaker, err := breakers.Get("catalog")
	if err != nil {
		return nil, fmt.Errorf("register catalog breaker: %w", err)
	}
	catalogClient := fetchclient.New(fetchclient.Config{
		Timeout: 15 * time.Second,
		Retry:   retry.CatalogFetchConfig(),
	}, catalogBreaker)
	catalog, err := source.NewClient(catalogClient, cfg.CatalogBaseURL)
	if err != nil {
		return nil, fmt.Errorf("build catalog client: %w", err)
	}

	gatewayBreaker, err := breakers.Get("push-gateway")
	if err != nil {
		return nil, fmt.Errorf("register push gateway breaker: %w", err)
	}
	gatewayClient := fetchclient.New(fetchclient.Config{
		Timeout: 10 * time.Second,
		Retry:   retry.PushDispatchConfig(),
	}, gatewayBreaker)
	dispatcher, err := push.NewDispatcher(gatewayClient, pgRepo.NewPushSubscriptionRepo(database), push.Config{
		GatewayURL:    cfg.PushGatewayURL,
		RatePerSecond: float64(cfg.PushRatePerSecond),
	})
	if err != nil {
		return nil, fmt.Errorf("build push dispatcher: %w", err)
	}

	matcher := match.NewService(pgRepo.NewCriteriaRepo(database))

	notifySvc := notify.NewService(
		matcher,
		pgRepo.NewNotificationRepo(database),
		pgRepo.NewSeenRepo(database),
		pgRepo.NewPushSettingsRepo(database),
		dispatcher,
		notify.Config{
			BatchSize:     cfg.BatchSize,
			RetentionDays: cfg.RetentionDays,
			MaxPerUser:    cfg.MaxPerUser,
		},
	)

	logger.Info("pipeline wired",
		slog.String("catalog_url", cfg.CatalogBaseURL),
		slog.String("push_gateway_url", cfg.PushGatewayURL))

	return &pipeline{
		catalog:  catalog,
		notify:   notifySvc,
		breakers: breakers,
		slos:     slo.NewTracker(),
	}, nil
}

// startCronWorker starts the cron scheduler and runs the pipeline periodically.
func startCronWorker(ctx context.Context, logger *slog.Logger, deps *pipeline, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics, healthServer *workerPkg.HealthServer) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(cfg.CronSchedule, func() {
		runPipelineJob(ctx, logger, deps, cfg, metrics)
	})
	if err != nil {
		logger.Error("failed to add cron job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	// Keep the freshness gauge moving between runs so a stalled scheduler
	// shows up before the next tick.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				deps.slos.ObserveFreshness(now)
			}
		}
	}()

	// Mark as ready after cron is set up
	healthServer.SetReady(true)
	logger.Info("worker marked as ready")

	logger.Info("worker started", slog.String("schedule", cfg.CronSchedule), slog.String("timezone", cfg.Timezone))

	<-ctx.Done()
	logger.Info("shutdown signal received")
	stopCtx := c.Stop()
	<-stopCtx.Done()
	logger.Info("worker stopped")
}

// runPipelineJob executes a single poll-match-notify run with timeout and
// error handling.
func runPipelineJob(parent context.Context, logger *slog.Logger, deps *pipeline, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) {
	startTime := time.Now()
	metrics.RecordJobRun("started")

	ctx, cancel := context.WithTimeout(parent, cfg.ProcessTimeout)
	defer cancel()

	ctx = logging.WithRunIDContext(ctx, logging.NewRunID())
	log := logging.WithRunID(ctx, logger)

	ctx, span := tracing.GetTracer().Start(ctx, "pipeline-run")
	defer span.End()

	log.Info("pipeline run started")

	items, err := deps.catalog.RecentItems(ctx, cfg.FetchLimit)
	obsmetrics.RecordCatalogPoll(err == nil)
	if err != nil {
		log.Error("catalog poll failed", slog.Any("error", err))
		metrics.RecordJobRun("failure")
		metrics.RecordJobDuration(time.Since(startTime).Seconds())
		deps.slos.RecordRun(false, time.Since(startTime), time.Now())
		obsmetrics.UpdateBreakerStates(deps.breakers.Snapshots())
		return
	}
	obsmetrics.RecordItemsDiscovered("catalog", len(items))

	result := deps.notify.Process(ctx, items)

	success := len(result.Errors) == 0
	if success {
		metrics.RecordJobRun("success")
		metrics.RecordLastSuccess()
	} else {
		metrics.RecordJobRun("failure")
		for _, msg := range result.Errors {
			log.Warn("pipeline run error", slog.String("error", msg))
		}
	}
	metrics.RecordJobDuration(time.Since(startTime).Seconds())
	metrics.RecordItemsProcessed(len(items))
	deps.slos.RecordRun(success, time.Since(startTime), time.Now())
	obsmetrics.UpdateBreakerStates(deps.breakers.Snapshots())

	log.Info("pipeline run completed",
		slog.Int("items", len(items)),
		slog.Int("matched", result.Matched),
		slog.Int("notifications_sent", result.NotificationsSent),
		slog.Int("errors", len(result.Errors)),
		slog.Duration("duration", time.Since(startTime)),
	)
}
