// Package metrics wraps the Prometheus counters/gauges/histograms the
// Deployment Orchestrator and Capability Scanner update as they run.
//
// Grounded on internal/monitoring/monitor.go's SystemMetrics: a private
// prometheus.Registry (never the global DefaultRegisterer, so tests can
// build isolated instances) populated once in a constructor via
// registry.MustRegister, with typed fields instead of a free-floating
// package var per metric. The teacher's health-check worker, deployment
// resource gauges (cpu/mem/disk/network, which need a stats poller this
// spec's one-shot Capability Scanner doesn't have), and dedicated metrics
// HTTP server are dropped; what is kept is worker-pool depth, retry counts,
// deployment outcomes and duration, and scan duration and outcome.
// Prometheus exposition
// serving is explicitly out of scope: Handler exists for an external HTTP
// layer to mount, but nothing in this module calls it itself.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the counters/gauges/histograms the orchestrator and
// scanner update.
type Metrics struct {
	registry *prometheus.Registry

	// ActiveTasks is the current worker pool depth (§4.H): the number of
	// deployments the orchestrator has an in-flight goroutine for.
	ActiveTasks prometheus.Gauge

	// RetriesTotal counts retry attempts the worker loop takes, labeled by
	// deployment target type.
	RetriesTotal *prometheus.CounterVec

	// DeploymentsTotal counts terminal outcomes, labeled by result
	// (succeeded/failed/cancelled).
	DeploymentsTotal *prometheus.CounterVec

	// DeployDuration observes wall-clock deploy time (DEPLOYING to
	// RUNNING/FAILED), matching Deployment.DeployDurationSeconds (§4.H).
	DeployDuration prometheus.Histogram

	// ScanDuration observes Capability Scanner probe-plan wall-clock time
	// (§4.D).
	ScanDuration prometheus.Histogram

	// ScansTotal counts completed scans by success/failure.
	ScansTotal *prometheus.CounterVec
}

// New builds a Metrics bound to a fresh private registry and registers
// every metric against it.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ActiveTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "windflow_orchestrator_active_tasks",
			Help: "Number of deployments currently being worked by the orchestrator",
		}),
		RetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "windflow_orchestrator_retries_total",
			Help: "Total number of deployment retry attempts",
		}, []string{"target_type"}),
		DeploymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "windflow_orchestrator_deployments_total",
			Help: "Total number of deployments reaching a terminal state, by outcome",
		}, []string{"outcome"}),
		DeployDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "windflow_orchestrator_deploy_duration_seconds",
			Help:    "Deployment duration in seconds from DEPLOYING to a terminal status",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "windflow_scanner_scan_duration_seconds",
			Help:    "Capability scan duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		ScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "windflow_scanner_scans_total",
			Help: "Total number of capability scans, by outcome",
		}, []string{"outcome"}),
	}

	registry.MustRegister(
		m.ActiveTasks,
		m.RetriesTotal,
		m.DeploymentsTotal,
		m.DeployDuration,
		m.ScanDuration,
		m.ScansTotal,
	)
	return m
}

// Handler returns the Prometheus HTTP handler for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
