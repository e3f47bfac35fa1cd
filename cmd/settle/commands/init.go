package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// starterManifest is the annotated example written by settle init. It
// exercises every resource kind.
const starterManifest = `# Desired host state for settle.
# Converge with: settle apply -m settle.yaml
version: 1

resources:
  # Packages: state present installs, state absent removes.
  - kind: pkg
    name: git
    state: present

  - kind: pkg
    name: zsh
    state: present

  - kind: pkg
    name: fzf
    state: present

  # An apt repository is a managed sources.list.d entry. Packages from
  # it declare a requires edge so the repository converges first.
  - kind: apt.repo
    name: vscode
    path: /etc/apt/sources.list.d/vscode.list
    state: present
    content: |
      deb [arch=amd64,arm64,armhf signed-by=/etc/apt/keyrings/packages.microsoft.gpg] https://packages.microsoft.com/repos/code stable main

  - kind: pkg
    name: code
    state: present
    requires: ["apt.repo:vscode"]

  # A single line that must be present in a file. Appended once; never
  # duplicated on re-runs.
  - kind: file.line
    name: zshrc-upgrade-alias
    path: /root/.zshrc
    state: present
    line: "alias full-upgrade='sudo apt update && sudo apt full-upgrade --auto-remove -y'"
    requires: ["pkg:zsh"]

  # Services converge to enabled and running.
  - kind: pkg
    name: watchdog
    state: present

  - kind: service
    name: watchdog
    state: enabled
    requires: ["pkg:watchdog"]
`

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter manifest",
		Long: `Write an annotated starter manifest to the manifest path. The starter
covers every resource kind and shows how requires edges order
convergence.`,
		Example: `  settle init
  settle init -m prod.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(manifestPath); err == nil && !force {
				return fatal(fmt.Errorf("%s already exists, use --force to overwrite", manifestPath))
			}

			if err := os.WriteFile(manifestPath, []byte(starterManifest), 0o644); err != nil {
				return fatal(fmt.Errorf("failed to write manifest: %w", err))
			}

			log.Info().Str("manifest", manifestPath).Msg("starter manifest written")
			fmt.Printf("wrote %s\nreview it, then run: settle apply -m %s\n", manifestPath, manifestPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing manifest")

	return cmd
}
