package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for convergence runs. It
// implements the engine's MetricsRecorder. A disabled Metrics instance
// is a no-op, so callers never have to nil-check.
type Metrics struct {
	config MetricsConfig

	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	actionsExecuted *prometheus.CounterVec
	actionDuration  *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector. When cfg.Enabled is false the
// returned instance records nothing.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{config: cfg}
	}

	registry := prometheus.NewRegistry()
	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "runs_started_total",
			Help:      "Total number of convergence runs started",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of convergence runs completed",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of convergence runs in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),

		actionsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "actions_executed_total",
			Help:      "Total number of plan actions executed",
		}, []string{"op", "status"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "action_duration_seconds",
			Help:      "Duration of plan actions in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}

	registry.MustRegister(
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.actionsExecuted,
		m.actionDuration,
	)
	return m
}

// RunStarted counts a run start.
func (m *Metrics) RunStarted() {
	if m.registry == nil {
		return
	}
	m.runsStarted.Inc()
}

// RunCompleted counts a run completion and observes its duration.
func (m *Metrics) RunCompleted(status string, duration time.Duration) {
	if m.registry == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// ActionExecuted counts an executed action and observes its duration.
func (m *Metrics) ActionExecuted(op, status string, duration time.Duration) {
	if m.registry == nil {
		return
	}
	m.actionsExecuted.WithLabelValues(op, status).Inc()
	m.actionDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// Handler returns the /metrics HTTP handler for the registry.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts the metrics HTTP listener on the configured address. It
// blocks, so callers run it in a goroutine. A store-free watch loop is
// the intended user.
func (m *Metrics) Serve() error {
	if m.registry == nil || m.config.ListenAddr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              m.config.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}
