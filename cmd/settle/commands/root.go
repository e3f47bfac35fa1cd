// Package commands implements the settle CLI.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/settlekit/settle/pkg/engine"
	"github.com/settlekit/settle/pkg/telemetry"
)

var (
	// Global flags
	manifestPath string
	verbose      bool
	jsonOutput   bool
)

// ExitError carries a specific process exit code out of a command.
// A run that completed with per-resource failures exits 1; fatal
// errors (malformed manifest, invalid graph) exit 2.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "settle",
		Short: "Settle - declarative host convergence",
		Long: `Settle converges a host toward a declared desired state.

A YAML manifest declares packages, apt repositories, managed files,
required file lines and systemd services. Every run probes the actual
host state, diffs it against the manifest and applies only what is
missing. Runs are idempotent: a second run over a converged host
changes nothing.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "info"
			if verbose {
				level = "debug"
			}
			return telemetry.SetupLogging(telemetry.LoggingConfig{
				Level:  level,
				Format: "console",
				Output: "stderr",
			})
		},
	}

	rootCmd.PersistentFlags().StringVarP(&manifestPath, "manifest", "m", "settle.yaml", "manifest file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}

// fatal wraps an error with exit code 2 so main exits correctly. Load
// and graph errors land here; per-resource failures never do.
func fatal(err error) error {
	return &ExitError{Code: 2, Message: err.Error()}
}

// statusGlyph renders an outcome status for the human-readable report.
func statusGlyph(status engine.OutcomeStatus) string {
	switch status {
	case engine.OutcomeApplied:
		return "✓"
	case engine.OutcomeAlreadySatisfied:
		return "─"
	case engine.OutcomeFailed:
		return "✗"
	default:
		return "?"
	}
}

// printReport renders a run report to stdout.
func printReport(report *engine.Report) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	for _, o := range report.Outcomes {
		line := fmt.Sprintf("%s %-40s %s", statusGlyph(o.Status), o.ResourceID, o.Op)
		if o.Status == engine.OutcomeFailed {
			line += fmt.Sprintf("  (%s)", o.Reason)
		}
		fmt.Println(line)
	}

	fmt.Printf("\nrun %s: %d applied, %d already satisfied, %d failed (%s)\n",
		report.RunID, report.Applied, report.AlreadySatisfied, report.Failed,
		report.Duration().Round(time.Millisecond))

	if !report.OK() {
		fmt.Println("\nfailures:")
		for _, f := range report.Failures {
			fmt.Printf("  %s: %s\n", f.ResourceID, f.Reason)
		}
	}
	return nil
}
