package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// statusReport is the status command's output shape.
type statusReport struct {
	Backend    string `json:"backend"`
	Ready      bool   `json:"ready"`
	ReadyError string `json:"ready_error,omitempty"`
	Model      string `json:"model"`
	Documents  int    `json:"documents,omitempty"`
	Chunks     int    `json:"chunks,omitempty"`
}

// counter is implemented by backends that can report corpus size.
type counter interface {
	DocumentCount(ctx context.Context) (int, error)
	ChunkCount(ctx context.Context) (int, error)
}

// newStatusCmd creates the status command.
func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store readiness and corpus size",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p, cfg, err := openPipeline(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			report := statusReport{
				Backend: cfg.Store.Backend,
				Model:   p.EmbedderModel(),
				Ready:   true,
			}
			if err := p.Ready(ctx); err != nil {
				report.Ready = false
				report.ReadyError = err.Error()
			}

			if c, ok := p.Store().(counter); ok && report.Ready {
				if n, err := c.DocumentCount(ctx); err == nil {
					report.Documents = n
				}
				if n, err := c.ChunkCount(ctx); err == nil {
					report.Chunks = n
				}
			}

			if opts.jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Backend:   %s\n", report.Backend)
			fmt.Fprintf(cmd.OutOrStdout(), "Model:     %s\n", report.Model)
			if report.Ready {
				fmt.Fprintln(cmd.OutOrStdout(), "Ready:     yes")
				fmt.Fprintf(cmd.OutOrStdout(), "Documents: %d\n", report.Documents)
				fmt.Fprintf(cmd.OutOrStdout(), "Chunks:    %d\n", report.Chunks)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Ready:     no (%s)\n", report.ReadyError)
			}
			return nil
		},
	}
}
