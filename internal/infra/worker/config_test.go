package worker

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Shared metrics instance: promauto registration is global, so tests reuse
// one WorkerMetrics to avoid duplicate-registration panics.
var globalTestMetrics = NewWorkerMetrics()

func clearWorkerEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CRON_SCHEDULE", "WORKER_TIMEZONE", "FETCH_LIMIT", "MATCH_BATCH_SIZE",
		"RETENTION_DAYS", "MAX_NOTIFICATIONS_PER_USER", "PROCESS_TIMEOUT",
		"WORKER_HEALTH_PORT", "CATALOG_BASE_URL", "PUSH_GATEWAY_URL",
		"PUSH_RATE_PER_SECOND", "WORKER_CONFIG_FILE",
	} {
		_ = os.Unsetenv(key)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.CronSchedule != "*/10 * * * *" {
		t.Errorf("Expected CronSchedule '*/10 * * * *', got '%s'", config.CronSchedule)
	}
	if config.Timezone != "Asia/Seoul" {
		t.Errorf("Expected Timezone 'Asia/Seoul', got '%s'", config.Timezone)
	}
	if config.FetchLimit != 100 {
		t.Errorf("Expected FetchLimit 100, got %d", config.FetchLimit)
	}
	if config.BatchSize != 50 {
		t.Errorf("Expected BatchSize 50, got %d", config.BatchSize)
	}
	if config.RetentionDays != 30 {
		t.Errorf("Expected RetentionDays 30, got %d", config.RetentionDays)
	}
	if config.MaxPerUser != 500 {
		t.Errorf("Expected MaxPerUser 500, got %d", config.MaxPerUser)
	}
	if config.ProcessTimeout != 5*time.Minute {
		t.Errorf("Expected ProcessTimeout 5m, got %v", config.ProcessTimeout)
	}
	if config.HealthPort != 9091 {
		t.Errorf("Expected HealthPort 9091, got %d", config.HealthPort)
	}
	if config.PushRatePerSecond != 20 {
		t.Errorf("Expected PushRatePerSecond 20, got %d", config.PushRatePerSecond)
	}
}

func TestWorkerConfig_Validate_ValidConfig(t *testing.T) {
	config := DefaultConfig()

	if err := config.Validate(); err != nil {
		t.Errorf("Expected valid config, got error: %v", err)
	}
}

func TestWorkerConfig_Validate_InvalidCronSchedule(t *testing.T) {
	config := DefaultConfig()
	config.CronSchedule = "not a cron"

	err := config.Validate()
	if err == nil {
		t.Fatal("Expected validation error for invalid cron schedule")
	}
	if !strings.Contains(err.Error(), "cron schedule") {
		t.Errorf("Expected cron schedule error, got: %v", err)
	}
}

func TestWorkerConfig_Validate_InvalidTimezone(t *testing.T) {
	config := DefaultConfig()
	config.Timezone = "Mars/Olympus_Mons"

	if err := config.Validate(); err == nil {
		t.Fatal("Expected validation error for invalid timezone")
	}
}

func TestWorkerConfig_Validate_MultipleErrors(t *testing.T) {
	config := DefaultConfig()
	config.BatchSize = 0
	config.RetentionDays = 1000
	config.HealthPort = 80

	err := config.Validate()
	if err == nil {
		t.Fatal("Expected validation errors")
	}
	for _, want := range []string{"batch size", "retention days", "health port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected %q in error, got: %v", want, err)
		}
	}
}

func TestLoadConfigFromEnv_AllEnvVarsValid(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv("CRON_SCHEDULE", "0 */2 * * *")
	t.Setenv("WORKER_TIMEZONE", "UTC")
	t.Setenv("FETCH_LIMIT", "250")
	t.Setenv("MATCH_BATCH_SIZE", "100")
	t.Setenv("RETENTION_DAYS", "14")
	t.Setenv("MAX_NOTIFICATIONS_PER_USER", "200")
	t.Setenv("PROCESS_TIMEOUT", "10m")
	t.Setenv("WORKER_HEALTH_PORT", "9191")
	t.Setenv("CATALOG_BASE_URL", "https://catalog.example.com")
	t.Setenv("PUSH_GATEWAY_URL", "https://push.example.com/send")
	t.Setenv("PUSH_RATE_PER_SECOND", "50")

	cfg, err := LoadConfigFromEnv(slog.Default(), globalTestMetrics)
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}

	if cfg.CronSchedule != "0 */2 * * *" {
		t.Errorf("CronSchedule = %q", cfg.CronSchedule)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("Timezone = %q", cfg.Timezone)
	}
	if cfg.FetchLimit != 250 {
		t.Errorf("FetchLimit = %d", cfg.FetchLimit)
	}
	if cfg.BatchSize != 100 {
		t.Errorf("BatchSize = %d", cfg.BatchSize)
	}
	if cfg.RetentionDays != 14 {
		t.Errorf("RetentionDays = %d", cfg.RetentionDays)
	}
	if cfg.MaxPerUser != 200 {
		t.Errorf("MaxPerUser = %d", cfg.MaxPerUser)
	}
	if cfg.ProcessTimeout != 10*time.Minute {
		t.Errorf("ProcessTimeout = %v", cfg.ProcessTimeout)
	}
	if cfg.HealthPort != 9191 {
		t.Errorf("HealthPort = %d", cfg.HealthPort)
	}
	if cfg.CatalogBaseURL != "https://catalog.example.com" {
		t.Errorf("CatalogBaseURL = %q", cfg.CatalogBaseURL)
	}
	if cfg.PushGatewayURL != "https://push.example.com/send" {
		t.Errorf("PushGatewayURL = %q", cfg.PushGatewayURL)
	}
	if cfg.PushRatePerSecond != 50 {
		t.Errorf("PushRatePerSecond = %d", cfg.PushRatePerSecond)
	}
}

func TestLoadConfigFromEnv_MissingEnvVars(t *testing.T) {
	clearWorkerEnv(t)

	cfg, err := LoadConfigFromEnv(slog.Default(), globalTestMetrics)
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}

	defaults := DefaultConfig()
	if *cfg != defaults {
		t.Errorf("Expected defaults %+v, got %+v", defaults, *cfg)
	}
}

func TestLoadConfigFromEnv_InvalidValuesFallBack(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv("CRON_SCHEDULE", "banana")
	t.Setenv("MATCH_BATCH_SIZE", "-5")
	t.Setenv("PROCESS_TIMEOUT", "10h") // above the 1h cap

	cfg, err := LoadConfigFromEnv(slog.Default(), globalTestMetrics)
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}

	if cfg.CronSchedule != "*/10 * * * *" {
		t.Errorf("Expected fallback cron schedule, got %q", cfg.CronSchedule)
	}
	if cfg.BatchSize != 50 {
		t.Errorf("Expected fallback batch size, got %d", cfg.BatchSize)
	}
	if cfg.ProcessTimeout != 5*time.Minute {
		t.Errorf("Expected fallback process timeout, got %v", cfg.ProcessTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Fail-open config must validate, got: %v", err)
	}
}

func TestLoadConfigFromEnv_FileOverlay(t *testing.T) {
	clearWorkerEnv(t)

	path := filepath.Join(t.TempDir(), "worker.yaml")
	content := `
cron_schedule: "0 */4 * * *"
fetch_limit: 300
process_timeout: "15m"
push_gateway_url: "https://push.internal/send"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WORKER_CONFIG_FILE", path)
	// Environment still wins over the file.
	t.Setenv("FETCH_LIMIT", "50")

	cfg, err := LoadConfigFromEnv(slog.Default(), globalTestMetrics)
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}

	if cfg.CronSchedule != "0 */4 * * *" {
		t.Errorf("CronSchedule = %q, want file value", cfg.CronSchedule)
	}
	if cfg.FetchLimit != 50 {
		t.Errorf("FetchLimit = %d, want env override", cfg.FetchLimit)
	}
	if cfg.ProcessTimeout != 15*time.Minute {
		t.Errorf("ProcessTimeout = %v, want file value", cfg.ProcessTimeout)
	}
	if cfg.PushGatewayURL != "https://push.internal/send" {
		t.Errorf("PushGatewayURL = %q, want file value", cfg.PushGatewayURL)
	}
	if cfg.Timezone != "Asia/Seoul" {
		t.Errorf("Timezone = %q, want default", cfg.Timezone)
	}
}

func TestLoadConfigFromEnv_FileOverlayMalformed(t *testing.T) {
	clearWorkerEnv(t)

	path := filepath.Join(t.TempDir(), "worker.yaml")
	if err := os.WriteFile(path, []byte("cron_schedule: [not, a, string"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WORKER_CONFIG_FILE", path)

	cfg, err := LoadConfigFromEnv(slog.Default(), globalTestMetrics)
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.CronSchedule != "*/10 * * * *" {
		t.Errorf("Expected defaults after malformed file, got %q", cfg.CronSchedule)
	}
}
