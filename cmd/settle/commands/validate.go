package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/settlekit/settle/pkg/backends"
	"github.com/settlekit/settle/pkg/engine"
	"github.com/settlekit/settle/pkg/manifest"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the manifest without touching the host",
		Long: `Parse the manifest and build its resource graph. Duplicate resource
identities, dangling requires references and dependency cycles all
surface here, before anything is probed or applied.`,
		Example: `  settle validate -m prod.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			controller := engine.NewController(
				manifest.NewFileLoader(manifestPath),
				backends.Default(),
			)

			graph, err := controller.Validate(cmd.Context())
			if err != nil {
				return fatal(err)
			}

			fmt.Printf("manifest %s is valid: %d resources, %d dependency levels\n",
				manifestPath, graph.Len(), len(graph.Levels()))
			return nil
		},
	}

	return cmd
}
