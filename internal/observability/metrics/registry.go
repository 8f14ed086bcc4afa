// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Business metrics track catalog ingestion volume and data freshness
var (
	// ItemsDiscoveredTotal counts catalog items returned by polls, per source
	ItemsDiscoveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_items_discovered_total",
			Help: "Total number of items discovered from catalog polls",
		},
		[]string{"source"},
	)

	// CatalogPollsTotal counts catalog poll attempts by outcome
	CatalogPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_polls_total",
			Help: "Total number of catalog polls by outcome",
		},
		[]string{"outcome"},
	)
)

// Circuit breaker metrics expose upstream health as scrapeable state
var (
	// BreakerState reports each breaker's state (0=closed, 1=half-open, 2=open)
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state per target (0=closed, 1=half-open, 2=open)",
		},
		[]string{"target"},
	)

	// BreakerConsecutiveFailures reports the current consecutive failure count
	BreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current consecutive failure count per breaker target",
		},
		[]string{"target"},
	)
)

// DBStatsCollector exports connection pool statistics from database/sql.
// Register it once per process with the default registry.
type DBStatsCollector struct {
	db *sql.DB

	openConnections *prometheus.Desc
	inUse           *prometheus.Desc
	idle            *prometheus.Desc
	waitCount       *prometheus.Desc
	waitDuration    *prometheus.Desc
}

// NewDBStatsCollector creates a collector reading pool stats from db.
func NewDBStatsCollector(db *sql.DB) *DBStatsCollector {
	return &DBStatsCollector{
		db: db,
		openConnections: prometheus.NewDesc(
			"db_pool_open_connections",
			"Number of established connections both in use and idle",
			nil, nil,
		),
		inUse: prometheus.NewDesc(
			"db_pool_in_use_connections",
			"Number of connections currently in use",
			nil, nil,
		),
		idle: prometheus.NewDesc(
			"db_pool_idle_connections",
			"Number of idle connections",
			nil, nil,
		),
		waitCount: prometheus.NewDesc(
			"db_pool_wait_count_total",
			"Total number of connections waited for",
			nil, nil,
		),
		waitDuration: prometheus.NewDesc(
			"db_pool_wait_duration_seconds_total",
			"Total time blocked waiting for a new connection",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *DBStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.openConnections
	ch <- c.inUse
	ch <- c.idle
	ch <- c.waitCount
	ch <- c.waitDuration
}

// Collect implements prometheus.Collector.
func (c *DBStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.db.Stats()
	ch <- prometheus.MustNewConstMetric(c.openConnections, prometheus.GaugeValue, float64(stats.OpenConnections))
	ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(stats.InUse))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(stats.Idle))
	ch <- prometheus.MustNewConstMetric(c.waitCount, prometheus.CounterValue, float64(stats.WaitCount))
	ch <- prometheus.MustNewConstMetric(c.waitDuration, prometheus.CounterValue, stats.WaitDuration.Seconds())
}
