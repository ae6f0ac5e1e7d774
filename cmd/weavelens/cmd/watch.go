package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weavelens/weavelens/internal/watcher"
)

// newWatchCmd creates the watch command: continuous re-indexing.
func newWatchCmd(opts *rootOptions) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [roots...]",
		Short: "Watch roots and re-index on changes",
		Long: `Watch runs an initial scan, then observes the roots for filesystem
changes and re-scans after each quiet period. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, cfg, err := openPipeline(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			roots := args
			if len(roots) == 0 {
				roots = cfg.Paths.Roots
			}
			if len(roots) == 0 {
				return fmt.Errorf("no roots to watch: pass them as arguments or set paths.roots")
			}

			if _, err := p.Scan(ctx, roots); err != nil {
				return err
			}

			w := watcher.New(roots, debounce, func(ctx context.Context) error {
				_, err := p.Scan(ctx, roots)
				return err
			})

			err = w.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce,
		"Quiet period before a rescan fires")
	return cmd
}
