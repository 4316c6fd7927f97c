package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Connection metrics
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mopad_connections_active",
			Help: "Number of currently connected WebSocket clients",
		},
	)

	ConnectionsLagged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mopad_connections_lagged_total",
			Help: "Connections dropped because they fell behind the broadcast stream",
		},
	)

	// Command metrics
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mopad_commands_total",
			Help: "Total number of commands received by type",
		},
		[]string{"type"},
	)

	CommandsDenied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mopad_commands_denied_total",
			Help: "Commands dropped by the authorization check",
		},
	)

	// Broadcast metrics
	UpdatesPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mopad_updates_published_total",
			Help: "Total number of update events published to the hub",
		},
	)

	// Persistence metrics
	CommitErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mopad_commit_errors_total",
			Help: "Failed collection commits (memory and disk may diverge)",
		},
	)

	ReconcileRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mopad_reconcile_runs_total",
			Help: "Completed disk reconciliation passes",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(ConnectionsActive)
	prometheus.MustRegister(ConnectionsLagged)
	prometheus.MustRegister(CommandsTotal)
	prometheus.MustRegister(CommandsDenied)
	prometheus.MustRegister(UpdatesPublished)
	prometheus.MustRegister(CommitErrors)
	prometheus.MustRegister(ReconcileRuns)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
