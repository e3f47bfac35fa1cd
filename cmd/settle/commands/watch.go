package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/settlekit/settle/pkg/backends"
	"github.com/settlekit/settle/pkg/engine"
	"github.com/settlekit/settle/pkg/manifest"
	"github.com/settlekit/settle/pkg/stores"
)

func newWatchCommand() *cobra.Command {
	var (
		parallelism int
		historyDB   string
		noHistory   bool
		debounce    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-converge whenever the manifest changes",
		Long: `Converge once, then watch the manifest file and re-converge on every
change. Convergence is idempotent, so an unchanged manifest section
costs nothing on re-runs.

Per-resource failures are reported and watching continues; a fatal
error in a new manifest revision (parse error, dependency cycle) is
reported and the previous converged state simply stays in place until
the manifest is fixed.`,
		Example: `  settle watch -m settle.yaml`,
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

			controller := engine.NewController(
				manifest.NewFileLoader(manifestPath),
				backends.Default(),
				opts...,
			)

			converge := func() {
				report, err := controller.Converge(ctx)
				if err != nil {
					log.Error().Err(err).Msg("convergence failed, keeping previous state")
					return
				}
				if err := printReport(report); err != nil {
					log.Warn().Err(err).Msg("failed to print report")
				}
			}

			converge()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fatal(fmt.Errorf("failed to create watcher: %w", err))
			}
			defer watcher.Close()

			// Watch the directory, not the file: editors typically
			// replace files on save, which drops a file-level watch.
			dir := filepath.Dir(manifestPath)
			if err := watcher.Add(dir); err != nil {
				return fatal(fmt.Errorf("failed to watch %s: %w", dir, err))
			}
			target, err := filepath.Abs(manifestPath)
			if err != nil {
				return fatal(err)
			}

			log.Info().Str("manifest", manifestPath).Msg("watching for changes")

			var timer *time.Timer
			pending := make(chan struct{}, 1)
			for {
				select {
				case <-ctx.Done():
					return nil

				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					abs, err := filepath.Abs(event.Name)
					if err != nil || abs != target {
						continue
					}
					if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
						continue
					}
					// Debounce: editors fire several events per save.
					if timer != nil {
						timer.Stop()
					}
					timer = time.AfterFunc(debounce, func() {
						select {
						case pending <- struct{}{}:
						default:
						}
					})

				case <-pending:
					log.Info().Str("manifest", manifestPath).Msg("manifest changed, re-converging")
					converge()

				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					log.Warn().Err(err).Msg("watch error")
				}
			}
		},
	}

	cmd.Flags().IntVar(&parallelism, "parallelism", 4, "max parallel actions within a dependency level")
	cmd.Flags().StringVar(&historyDB, "history-db", "settle.db", "run history database path")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "skip recording run history")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "wait this long after the last change before re-converging")

	return cmd
}
