package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/settlekit/settle/pkg/backends"
	"github.com/settlekit/settle/pkg/engine"
	"github.com/settlekit/settle/pkg/manifest"
	"github.com/settlekit/settle/pkg/stores"
	"github.com/settlekit/settle/pkg/telemetry"
)

func newApplyCommand() *cobra.Command {
	var (
		parallelism   int
		historyDB     string
		noHistory     bool
		metricsAddr   string
		traceExporter string
		traceEndpoint string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Converge the host toward the manifest",
		Long: `Run one full convergence cycle: load the manifest, probe actual host
state, diff, and apply the missing pieces.

A resource that fails never aborts the run. Its dependents are skipped
with a failure outcome, every independent resource still converges, and
the report lists all failures at the end.

Exit codes: 0 when the host converged, 1 when the run completed with
failures, 2 on a fatal error before anything was applied.`,
		Example: `  # Converge against the default manifest
  settle apply

  # Converge a specific manifest with wider parallelism
  settle apply -m prod.yaml --parallelism 8

  # Converge without recording run history
  settle apply --no-history`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			opts := []engine.Option{
				engine.WithParallelism(parallelism),
				engine.WithManifestPath(manifestPath),
			}

			if !noHistory {
				store, err := stores.Open(ctx, historyDB)
				if err != nil {
					return fatal(fmt.Errorf("failed to open history store: %w", err))
				}
				defer store.Close()
				opts = append(opts, engine.WithRecorder(store))
			}

			if metricsAddr != "" {
				metrics := telemetry.NewMetrics(telemetry.MetricsConfig{
					Enabled:    true,
					Namespace:  "settle",
					ListenAddr: metricsAddr,
				})
				go func() {
					if err := metrics.Serve(); err != nil {
						log.Warn().Err(err).Msg("metrics server stopped")
					}
				}()
				opts = append(opts, engine.WithMetrics(metrics))
			}

			if traceExporter != "" {
				tracer, err := telemetry.NewTracer(ctx, telemetry.TracingConfig{
					Enabled:      true,
					Exporter:     traceExporter,
					Endpoint:     traceEndpoint,
					Insecure:     true,
					SamplingRate: 1.0,
				}, "settle", cmd.Root().Version)
				if err != nil {
					return fatal(fmt.Errorf("failed to set up tracing: %w", err))
				}
				defer func() {
					if err := tracer.Shutdown(context.Background()); err != nil {
						log.Warn().Err(err).Msg("tracer shutdown failed")
					}
				}()
				opts = append(opts, engine.WithTracer(tracer.Tracer()))
			}

			controller := engine.NewController(
				manifest.NewFileLoader(manifestPath),
				backends.Default(),
				opts...,
			)

			report, err := controller.Converge(ctx)
			if err != nil {
				return fatal(err)
			}

			if err := printReport(report); err != nil {
				return fatal(err)
			}
			if !report.OK() {
				return &ExitError{Code: 1, Message: fmt.Sprintf("%d resources failed", report.Failed)}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&parallelism, "parallelism", 4, "max parallel actions within a dependency level")
	cmd.Flags().StringVar(&historyDB, "history-db", "settle.db", "run history database path")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "skip recording run history")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	cmd.Flags().StringVar(&traceExporter, "trace-exporter", "", "trace exporter (otlp, stdout)")
	cmd.Flags().StringVar(&traceEndpoint, "trace-endpoint", "localhost:4317", "OTLP gRPC endpoint")

	return cmd
}
