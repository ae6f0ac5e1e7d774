package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// newScanCmd creates the scan command: one ingestion pass over the roots.
func newScanCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [roots...]",
		Short: "Scan and index documents",
		Long: `Scan walks the given roots (or the configured ones when omitted),
extracts text from new files and indexes them. Files whose content is
already indexed are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, _, err := openPipeline(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			stats, err := p.Scan(ctx, args)
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Seen %d files: %d indexed (%d chunks), %d skipped\n",
				stats.FilesSeen, stats.FilesIndexed, stats.ChunksIndexed, stats.Skipped)
			return nil
		},
	}
	return cmd
}
