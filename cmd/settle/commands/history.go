package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/settlekit/settle/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		historyDB string
		limit     int
		runID     string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past convergence runs",
		Long: `List recent convergence runs from the history database, or show the
per-resource outcomes of one run with --run.`,
		Example: `  # List the last 20 runs
  settle history

  # Show what one run did
  settle history --run 4f9a...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := stores.Open(ctx, historyDB)
			if err != nil {
				return fatal(fmt.Errorf("failed to open history store: %w", err))
			}
			defer store.Close()

			if runID != "" {
				outcomes, err := store.GetOutcomes(ctx, runID)
				if err != nil {
					return fatal(err)
				}
				if jsonOutput {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(outcomes)
				}
				for _, o := range outcomes {
					line := fmt.Sprintf("%-40s %-15s %s", o.ResourceID, o.Op, o.Status)
					if o.Reason != "" {
						line += fmt.Sprintf("  (%s)", o.Reason)
					}
					fmt.Println(line)
				}
				return nil
			}

			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return fatal(err)
			}
			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			for _, r := range runs {
				fmt.Printf("%s  %s  %-9s  %d applied, %d satisfied, %d failed  %s\n",
					r.RunID,
					r.StartedAt.Local().Format(time.DateTime),
					r.Status,
					r.Applied, r.AlreadySatisfied, r.Failed,
					r.ManifestPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&historyDB, "history-db", "settle.db", "run history database path")
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "show per-resource outcomes for this run ID")

	return cmd
}
