// Package telemetry sets up structured logging and the Prometheus collectors
// of the activation server.
//
// Metrics are registered against the default registry and served on a side
// port (telemetry.metrics.port, default 9090) at GET /metrics, outside the
// gin router.
package telemetry

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"keyactivate/internal/safego"
)

// HTTP metrics. The path label is the gin route template, never the raw URL.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
)

// Activation outcomes recorded in ActivationsTotal.
const (
	OutcomeCreated  = "created"
	OutcomeExisting = "existing"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

var (
	// ActivationsTotal counts activation requests by outcome.
	ActivationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_activations_total",
			Help: "Total number of activation requests, by outcome (created, existing, rejected, failed).",
		},
		[]string{"outcome"},
	)

	// RegisteredDevices holds the most recent total returned to a client.
	RegisteredDevices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registered_devices",
			Help: "Number of distinct registered hardware keys as of the last successful activation.",
		},
	)
)

// DBOpenConnections tracks open connections in the database pool.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Number of open connections in the database connection pool.",
	},
)

// StartDBStatsCollector samples pool statistics every 30 seconds until stop
// is closed.
func StartDBStatsCollector(db *sql.DB, stop <-chan struct{}) {
	safego.Go(func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
			select {
			case <-ticker.C:
			case <-stop:
				return
			}
		}
	})
}
