package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newSearchCmd creates the search command.
func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		k    int
		mode string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed documents",
		Long: `Search retrieves the best-matching chunks for the query. The default
hybrid mode combines semantic similarity with keyword matching;
--mode selects semantic or lexical retrieval alone.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := strings.Join(args, " ")

			p, _, err := openPipeline(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			results, err := p.Search(ctx, query, k, mode)
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results.")
				return nil
			}
			for i, r := range results {
				origin := "lexical"
				if r.Semantic {
					origin = "semantic"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%2d. [%.3f %s] %s (chunk %d)\n",
					i+1, r.Score, origin, r.SourcePath, r.Order)
				fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", snippet(r.Text, 160))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "limit", "k", 0, "Maximum number of results (0 = configured default)")
	cmd.Flags().StringVar(&mode, "mode", "", "Retrieval mode: semantic, lexical or hybrid")
	return cmd
}

// snippet collapses whitespace and truncates for terminal display.
func snippet(text string, max int) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) <= max {
		return flat
	}
	return string(runes[:max]) + "..."
}
