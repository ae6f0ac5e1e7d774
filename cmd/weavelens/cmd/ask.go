package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weavelens/weavelens/internal/search"
)

// newAskCmd creates the ask command: retrieval plus context assembly.
func newAskCmd(opts *rootOptions) *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Assemble answer context for a question",
		Long: `Ask retrieves the most relevant chunks for the question and joins
them into a single bounded context block, ready to paste into a
prompt. Chunks that would overflow the budget are dropped whole.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			question := strings.Join(args, " ")

			p, _, err := openPipeline(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			text, used, err := p.AskContext(ctx, question, k)
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Context string          `json:"context"`
					Sources []search.Result `json:"sources"`
				}{Context: text, Sources: used})
			}

			if text == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No relevant context found.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			fmt.Fprintln(cmd.ErrOrStderr())
			for _, r := range used {
				fmt.Fprintf(cmd.ErrOrStderr(), "source: %s (chunk %d)\n", r.SourcePath, r.Order)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "limit", "k", 0, "Maximum chunks to consider (0 = configured default)")
	return cmd
}
