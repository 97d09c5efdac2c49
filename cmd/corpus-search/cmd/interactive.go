package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/ui"
)

const prompt = "query> "

func newInteractiveCmd(g *globalOptions) *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"repl"},
		Short:   "Answer queries typed at a prompt",
		Long: `Load the index once and answer one query per line until 'exit',
'quit' or end of input. A query that fails to parse is reported and the
prompt continues.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, g.cfg, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			styles := ui.StylesFor(out)
			stats := sess.snapshot.Index.Stats()
			fmt.Fprintln(out, styles.Header.Render("corpus-search interactive mode"))
			fmt.Fprintf(out, "%s\n", styles.Label.Render(fmt.Sprintf(
				"%d documents indexed. Use \"double quotes\" for phrases; type exit or quit to leave.", stats.DocCount)))

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "\n"+prompt)
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}
				query := strings.TrimSpace(scanner.Text())
				if query == "" {
					continue
				}
				switch strings.ToLower(query) {
				case "exit", "quit":
					fmt.Fprintln(out, "bye")
					return nil
				}
				resp, err := sess.searcher.Query(cmd.Context(), sess.snapshot, query, sess.topN)
				if err != nil {
					fmt.Fprintln(out, styles.Error.Render("error: "+err.Error()))
					continue
				}
				ui.RenderResults(out, resp, styles)
			}
		},
	}

	opts.register(cmd)

	return cmd
}
