package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/ui"
)

type searchOptions struct {
	queryOptions
	format string
}

func newSearchCmd(g *globalOptions) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search the saved index",
		Long: `Rank documents for a free-text query. Words in double quotes must
appear next to each other in a matching document.

Examples:
  corpus-search search hurricane george
  corpus-search search '"new york" bombing' --top 5
  corpus-search search "asian financial crisis" --scoring tfidf --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != "text" && opts.format != "json" {
				return fmt.Errorf("--format must be text or json, got %q", opts.format)
			}
			sess, err := openSession(cmd, g.cfg, &opts.queryOptions)
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			resp, err := sess.searcher.Query(cmd.Context(), sess.snapshot, query, sess.topN)
			if err != nil {
				return err
			}
			if opts.format == "json" {
				return ui.RenderJSON(cmd.OutOrStdout(), resp)
			}
			ui.RenderResults(cmd.OutOrStdout(), resp, ui.StylesFor(cmd.OutOrStdout()))
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text or json")

	return cmd
}
