package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Phase is the controller's position in the convergence cycle.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseLoading   Phase = "loading"
	PhaseProbing   Phase = "probing"
	PhasePlanning  Phase = "planning"
	PhaseExecuting Phase = "executing"
	PhaseReported  Phase = "reported"
)

// MetricsRecorder receives run and action measurements. The telemetry
// package provides the Prometheus implementation; a nil recorder
// disables measurement.
type MetricsRecorder interface {
	RunStarted()
	RunCompleted(status string, duration time.Duration)
	ActionExecuted(op, status string, duration time.Duration)
}

// Controller drives one full convergence cycle: load desired state,
// probe actual state, diff into a plan, execute, report. The cycle is
// stateless between runs; idempotence comes from recomputing the diff
// against freshly probed state every time, never from remembering what
// a previous run did.
type Controller struct {
	loader      Loader
	backends    Backends
	parallelism int

	recorder Recorder
	metrics  MetricsRecorder
	tracer   trace.Tracer

	manifestPath string

	mu    sync.RWMutex
	phase Phase
}

// Option configures a Controller.
type Option func(*Controller)

// WithParallelism sets the maximum number of actions executed
// concurrently within one dependency level.
func WithParallelism(n int) Option {
	return func(c *Controller) { c.parallelism = n }
}

// WithRecorder sets the run history recorder. Recording failures are
// logged and never fail the run.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithTracer sets the tracer used to span each convergence phase.
func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) { c.tracer = t }
}

// WithManifestPath records the desired-state input path on reports.
func WithManifestPath(path string) Option {
	return func(c *Controller) { c.manifestPath = path }
}

// NewController creates a convergence controller over a loader and a
// set of backends.
func NewController(loader Loader, backends Backends, opts ...Option) *Controller {
	c := &Controller{
		loader:      loader,
		backends:    backends,
		parallelism: 4,
		phase:       PhaseIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Phase returns the controller's current phase.
func (c *Controller) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

// Validate loads the desired state and finalizes the graph without
// probing or mutating anything. It surfaces load and graph errors.
func (c *Controller) Validate(ctx context.Context) (*ResourceGraph, error) {
	c.setPhase(PhaseLoading)
	defer c.setPhase(PhaseIdle)

	g, err := c.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := g.Finalize(); err != nil {
		return nil, err
	}
	return g, nil
}

// Plan runs the read-only half of the cycle: load, probe, diff. The
// returned plan is informational; Converge recomputes its own plan
// against fresh state rather than executing a stored one.
func (c *Controller) Plan(ctx context.Context) (*Plan, *ResourceGraph, error) {
	g, err := c.Validate(ctx)
	if err != nil {
		return nil, nil, err
	}

	c.setPhase(PhaseProbing)
	observations := NewProber(c.backends).ProbeAll(ctx, g)

	c.setPhase(PhasePlanning)
	defer c.setPhase(PhaseIdle)
	plan, err := BuildPlan(g, observations)
	if err != nil {
		return nil, nil, err
	}
	return plan, g, nil
}

// Converge runs one full convergence cycle and returns the report.
// Fatal errors (malformed input, invalid graph) return a non-nil error
// with nothing mutated. Per-resource failures never produce an error
// here; they are carried in the report's outcomes and failure list.
func (c *Controller) Converge(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:        uuid.New().String(),
		ManifestPath: c.manifestPath,
		StartedAt:    time.Now().UTC(),
	}

	log.Info().Str("run_id", report.RunID).Msg("convergence run started")
	if c.metrics != nil {
		c.metrics.RunStarted()
	}

	ctx, endRun := c.startSpan(ctx, "converge",
		attribute.String("run.id", report.RunID))
	defer endRun()

	c.setPhase(PhaseLoading)
	g, err := c.loadAndFinalize(ctx)
	if err != nil {
		c.setPhase(PhaseIdle)
		return nil, err
	}

	c.setPhase(PhaseProbing)
	observations := c.probeAll(ctx, g)

	c.setPhase(PhasePlanning)
	plan, err := BuildPlan(g, observations)
	if err != nil {
		c.setPhase(PhaseIdle)
		return nil, err
	}
	summary := plan.Summary()
	log.Info().
		Str("run_id", report.RunID).
		Int("resources", summary.Total).
		Int("no_change", summary.NoChange).
		Msg("plan computed")

	c.setPhase(PhaseExecuting)
	report.Outcomes = c.execute(ctx, plan)
	report.CompletedAt = time.Now().UTC()
	report.summarize()

	c.setPhase(PhaseReported)
	c.observeRun(ctx, report)
	c.setPhase(PhaseIdle)

	return report, nil
}

func (c *Controller) loadAndFinalize(ctx context.Context) (*ResourceGraph, error) {
	ctx, end := c.startSpan(ctx, "load")
	defer end()

	g, err := c.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := g.Finalize(); err != nil {
		return nil, err
	}
	return g, nil
}

func (c *Controller) probeAll(ctx context.Context, g *ResourceGraph) map[string]Observation {
	ctx, end := c.startSpan(ctx, "probe",
		attribute.Int("resources", g.Len()))
	defer end()

	return NewProber(c.backends).ProbeAll(ctx, g)
}

func (c *Controller) execute(ctx context.Context, plan *Plan) []Outcome {
	ctx, end := c.startSpan(ctx, "execute",
		attribute.String("plan.id", plan.ID),
		attribute.Int("actions", len(plan.Actions)))
	defer end()

	outcomes := NewExecutor(c.backends, c.parallelism).Execute(ctx, plan)
	if c.metrics != nil {
		for _, o := range outcomes {
			c.metrics.ActionExecuted(string(o.Op), string(o.Status), o.Duration)
		}
	}
	return outcomes
}

// observeRun finishes run-level telemetry and persists the report.
// Recording is best effort: convergence already happened, so a storage
// failure only costs history, never correctness.
func (c *Controller) observeRun(ctx context.Context, report *Report) {
	status := "converged"
	if !report.OK() {
		status = "failed"
	}
	if c.metrics != nil {
		c.metrics.RunCompleted(status, report.Duration())
	}
	log.Info().
		Str("run_id", report.RunID).
		Str("status", status).
		Int("applied", report.Applied).
		Int("already_satisfied", report.AlreadySatisfied).
		Int("failed", report.Failed).
		Dur("duration", report.Duration()).
		Msg("convergence run completed")

	if c.recorder != nil {
		if err := c.recorder.RecordRun(ctx, report); err != nil {
			log.Warn().Str("run_id", report.RunID).Err(err).Msg("failed to record run history")
		}
	}
}

// startSpan opens a tracing span when a tracer is configured. The
// returned func ends the span; with no tracer it is a no-op.
func (c *Controller) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func()) {
	if c.tracer == nil {
		return ctx, func() {}
	}
	ctx, span := c.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func() { span.End() }
}
