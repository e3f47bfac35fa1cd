package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/settlekit/settle/pkg/backends"
	"github.com/settlekit/settle/pkg/engine"
	"github.com/settlekit/settle/pkg/manifest"
)

func newPlanCommand() *cobra.Command {
	var dotFile string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what apply would change",
		Long: `Probe actual host state and diff it against the manifest without
applying anything. The output lists every resource with the action a
run would take, NoOps included.

The plan is informational: apply recomputes its own diff against fresh
state rather than executing a saved plan.`,
		Example: `  # Show the pending changes
  settle plan

  # Write the dependency graph for Graphviz
  settle plan --dot plan.dot`,
		RunE: func(cmd *cobra.Command, args []string) error {
			controller := engine.NewController(
				manifest.NewFileLoader(manifestPath),
				backends.Default(),
				engine.WithManifestPath(manifestPath),
			)

			plan, graph, err := controller.Plan(cmd.Context())
			if err != nil {
				return fatal(err)
			}

			if dotFile != "" {
				if err := os.WriteFile(dotFile, []byte(plan.ToDOT(graph)), 0o644); err != nil {
					return fatal(fmt.Errorf("failed to write DOT file: %w", err))
				}
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			}

			for _, act := range plan.Actions {
				glyph := "─"
				if act.Op.Mutates() {
					glyph = "+"
				}
				fmt.Printf("%s %-40s %-15s %s\n", glyph, act.ResourceID, act.Op, act.Reason)
			}

			s := plan.Summary()
			fmt.Printf("\nplan: %d resources, %d to install, %d to remove, %d to write, %d to append, %d to enable, %d unchanged\n",
				s.Total, s.ToInstall, s.ToRemove, s.ToWrite, s.ToAppend, s.ToEnable, s.NoChange)
			return nil
		},
	}

	cmd.Flags().StringVar(&dotFile, "dot", "", "write the dependency graph in DOT format to this file")

	return cmd
}
