package telemetry

import (
	"testing"
	"time"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Tracing.Enabled || cfg.Metrics.Enabled {
		t.Error("tracing and metrics default to off")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"otlp without endpoint", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "otlp"
		}, true},
		{"otlp with endpoint", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "otlp"
			c.Tracing.Endpoint = "localhost:4317"
		}, false},
		{"unknown exporter", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "jaeger"
		}, true},
		{"sampling rate out of range", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "stdout"
			c.Tracing.SamplingRate = 1.5
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestMetrics_DisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	// No panic, no registry.
	m.RunStarted()
	m.RunCompleted("converged", time.Second)
	m.ActionExecuted("install", "applied", time.Second)

	if err := m.Serve(); err != nil {
		t.Errorf("disabled metrics Serve should return immediately: %v", err)
	}
}

func TestMetrics_EnabledRecords(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, Namespace: "settle"})

	m.RunStarted()
	m.RunCompleted("converged", 2*time.Second)
	m.ActionExecuted("install", "applied", time.Second)

	families, err := m.registry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"settle_runs_started_total",
		"settle_runs_completed_total",
		"settle_actions_executed_total",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}
