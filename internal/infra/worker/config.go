package worker

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"manga-notify/internal/pkg/config"

	"gopkg.in/yaml.v3"
)

// WorkerConfig holds the configuration for the notification worker.
// It controls the polling schedule, pipeline sizing, retention, upstream
// endpoints and the health server.
//
// Configuration sources, lowest to highest precedence:
//  1. Default values (DefaultConfig)
//  2. Optional YAML file named by WORKER_CONFIG_FILE
//  3. Environment variables
//
// Every field has a default and a validation rule, so the worker starts
// safely even with missing or invalid configuration (fail-open).
type WorkerConfig struct {
	// CronSchedule is the cron expression driving catalog polls.
	// Default: "*/10 * * * *" (every 10 minutes)
	CronSchedule string

	// Timezone is the IANA timezone for cron scheduling and quiet hours.
	// Default: "Asia/Seoul"
	Timezone string

	// FetchLimit is how many recent catalog items each poll requests.
	// Range: 1-1000. Default: 100
	FetchLimit int

	// BatchSize is the matching batch size inside the pipeline.
	// Range: 1-500. Default: 50
	BatchSize int

	// RetentionDays is the age-based notification retention window.
	// Range: 1-365. Default: 30
	RetentionDays int

	// MaxPerUser caps stored notifications per user via the ranked trim.
	// Range: 10-10000. Default: 500
	MaxPerUser int

	// ProcessTimeout bounds one full pipeline run.
	// Range: 30s-1h. Default: 5 minutes
	ProcessTimeout time.Duration

	// HealthPort is the health check HTTP server port.
	// Range: 1024-65535. Default: 9091
	HealthPort int

	// CatalogBaseURL is the upstream item source base URL.
	CatalogBaseURL string

	// PushGatewayURL is the push gateway send endpoint.
	PushGatewayURL string

	// PushRatePerSecond caps outbound push gateway requests.
	// Range: 1-1000. Default: 20
	PushRatePerSecond int
}

// DefaultConfig returns a WorkerConfig with production-ready defaults.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		CronSchedule:      "*/10 * * * *",
		Timezone:          "Asia/Seoul",
		FetchLimit:        100,
		BatchSize:         50,
		RetentionDays:     30,
		MaxPerUser:        500,
		ProcessTimeout:    5 * time.Minute,
		HealthPort:        9091,
		CatalogBaseURL:    "http://localhost:8081",
		PushGatewayURL:    "http://localhost:8082/send",
		PushRatePerSecond: 20,
	}
}

// Validate checks every field and returns the aggregated failures.
func (c *WorkerConfig) Validate() error {
	var errs []error

	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errs = append(errs, fmt.Errorf("cron schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidateIntRange(c.FetchLimit, 1, 1000); err != nil {
		errs = append(errs, fmt.Errorf("fetch limit: %w", err))
	}
	if err := config.ValidateIntRange(c.BatchSize, 1, 500); err != nil {
		errs = append(errs, fmt.Errorf("batch size: %w", err))
	}
	if err := config.ValidateIntRange(c.RetentionDays, 1, 365); err != nil {
		errs = append(errs, fmt.Errorf("retention days: %w", err))
	}
	if err := config.ValidateIntRange(c.MaxPerUser, 10, 10000); err != nil {
		errs = append(errs, fmt.Errorf("max per user: %w", err))
	}
	if err := config.ValidateDuration(c.ProcessTimeout, 30*time.Second, 1*time.Hour); err != nil {
		errs = append(errs, fmt.Errorf("process timeout: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}
	if err := config.ValidateIntRange(c.PushRatePerSecond, 1, 1000); err != nil {
		errs = append(errs, fmt.Errorf("push rate per second: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// fileConfig is the optional YAML overlay shape. Pointer fields distinguish
// "absent" from a zero value.
type fileConfig struct {
	CronSchedule      *string `yaml:"cron_schedule"`
	Timezone          *string `yaml:"timezone"`
	FetchLimit        *int    `yaml:"fetch_limit"`
	BatchSize         *int    `yaml:"batch_size"`
	RetentionDays     *int    `yaml:"retention_days"`
	MaxPerUser        *int    `yaml:"max_per_user"`
	ProcessTimeout    *string `yaml:"process_timeout"`
	HealthPort        *int    `yaml:"health_port"`
	CatalogBaseURL    *string `yaml:"catalog_base_url"`
	PushGatewayURL    *string `yaml:"push_gateway_url"`
	PushRatePerSecond *int    `yaml:"push_rate_per_second"`
}

// applyFileOverlay merges the YAML file named by WORKER_CONFIG_FILE, if any,
// over the defaults. A missing file is not an error; a malformed file is
// logged and skipped (fail-open).
func applyFileOverlay(cfg *WorkerConfig, logger *slog.Logger) {
	path := os.Getenv("WORKER_CONFIG_FILE")
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("config file unreadable, using defaults",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		logger.Warn("config file malformed, using defaults",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}

	if fc.CronSchedule != nil {
		cfg.CronSchedule = *fc.CronSchedule
	}
	if fc.Timezone != nil {
		cfg.Timezone = *fc.Timezone
	}
	if fc.FetchLimit != nil {
		cfg.FetchLimit = *fc.FetchLimit
	}
	if fc.BatchSize != nil {
		cfg.BatchSize = *fc.BatchSize
	}
	if fc.RetentionDays != nil {
		cfg.RetentionDays = *fc.RetentionDays
	}
	if fc.MaxPerUser != nil {
		cfg.MaxPerUser = *fc.MaxPerUser
	}
	if fc.ProcessTimeout != nil {
		if d, err := time.ParseDuration(*fc.ProcessTimeout); err == nil {
			cfg.ProcessTimeout = d
		} else {
			logger.Warn("config file process_timeout invalid",
				slog.String("value", *fc.ProcessTimeout),
				slog.String("error", err.Error()))
		}
	}
	if fc.HealthPort != nil {
		cfg.HealthPort = *fc.HealthPort
	}
	if fc.CatalogBaseURL != nil {
		cfg.CatalogBaseURL = *fc.CatalogBaseURL
	}
	if fc.PushGatewayURL != nil {
		cfg.PushGatewayURL = *fc.PushGatewayURL
	}
	if fc.PushRatePerSecond != nil {
		cfg.PushRatePerSecond = *fc.PushRatePerSecond
	}

	logger.Info("config file overlay applied", slog.String("path", path))
}

// LoadConfigFromEnv loads worker configuration with validation and automatic
// fallback to defaults on failure (fail-open: it never returns an error).
//
// Environment variables:
//   - CRON_SCHEDULE: cron expression (default: "*/10 * * * *")
//   - WORKER_TIMEZONE: IANA timezone name (default: "Asia/Seoul")
//   - FETCH_LIMIT: integer 1-1000 (default: 100)
//   - MATCH_BATCH_SIZE: integer 1-500 (default: 50)
//   - RETENTION_DAYS: integer 1-365 (default: 30)
//   - MAX_NOTIFICATIONS_PER_USER: integer 10-10000 (default: 500)
//   - PROCESS_TIMEOUT: duration string 30s-1h (default: "5m")
//   - WORKER_HEALTH_PORT: integer 1024-65535 (default: 9091)
//   - CATALOG_BASE_URL: upstream item source base URL
//   - PUSH_GATEWAY_URL: push gateway send endpoint
//   - PUSH_RATE_PER_SECOND: integer 1-1000 (default: 20)
//
// Each fallback is logged and counted in the worker's ConfigMetrics.
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	applyFileOverlay(&cfg, logger)
	fallbackApplied := false

	recordFallback := func(field string, warnings []string) {
		fallbackApplied = true
		metrics.RecordValidationError(field)
		metrics.RecordFallback(field, "default")
		for _, warning := range warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}

	result := config.LoadEnvWithFallback("CRON_SCHEDULE", cfg.CronSchedule, config.ValidateCronSchedule)
	cfg.CronSchedule = result.Value.(string)
	if result.FallbackApplied {
		recordFallback("cron_schedule", result.Warnings)
	}

	result = config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = result.Value.(string)
	if result.FallbackApplied {
		recordFallback("timezone", result.Warnings)
	}

	result = config.LoadEnvInt("FETCH_LIMIT", cfg.FetchLimit, func(v int) error {
		return config.ValidateIntRange(v, 1, 1000)
	})
	cfg.FetchLimit = result.Value.(int)
	if result.FallbackApplied {
		recordFallback("fetch_limit", result.Warnings)
	}

	result = config.LoadEnvInt("MATCH_BATCH_SIZE", cfg.BatchSize, func(v int) error {
		return config.ValidateIntRange(v, 1, 500)
	})
	cfg.BatchSize = result.Value.(int)
	if result.FallbackApplied {
		recordFallback("match_batch_size", result.Warnings)
	}

	result = config.LoadEnvInt("RETENTION_DAYS", cfg.RetentionDays, func(v int) error {
		return config.ValidateIntRange(v, 1, 365)
	})
	cfg.RetentionDays = result.Value.(int)
	if result.FallbackApplied {
		recordFallback("retention_days", result.Warnings)
	}

	result = config.LoadEnvInt("MAX_NOTIFICATIONS_PER_USER", cfg.MaxPerUser, func(v int) error {
		return config.ValidateIntRange(v, 10, 10000)
	})
	cfg.MaxPerUser = result.Value.(int)
	if result.FallbackApplied {
		recordFallback("max_notifications_per_user", result.Warnings)
	}

	result = config.LoadEnvDuration("PROCESS_TIMEOUT", cfg.ProcessTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 30*time.Second, 1*time.Hour)
	})
	cfg.ProcessTimeout = result.Value.(time.Duration)
	if result.FallbackApplied {
		recordFallback("process_timeout", result.Warnings)
	}

	result = config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})
	cfg.HealthPort = result.Value.(int)
	if result.FallbackApplied {
		recordFallback("worker_health_port", result.Warnings)
	}

	cfg.CatalogBaseURL = config.LoadEnvString("CATALOG_BASE_URL", cfg.CatalogBaseURL)
	cfg.PushGatewayURL = config.LoadEnvString("PUSH_GATEWAY_URL", cfg.PushGatewayURL)

	result = config.LoadEnvInt("PUSH_RATE_PER_SECOND", cfg.PushRatePerSecond, func(v int) error {
		return config.ValidateIntRange(v, 1, 1000)
	})
	cfg.PushRatePerSecond = result.Value.(int)
	if result.FallbackApplied {
		recordFallback("push_rate_per_second", result.Warnings)
	}

	metrics.SetFallbackActive("", fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg, nil
}
