package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/ui"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// DefaultBatchQueries are the TDT3 evaluation topics run when no query file
// is given.
var DefaultBatchQueries = []string{
	"hurricane george",
	"Clinton Lewinsky scandal",
	`"new york" bombing`,
	"middle east peace process",
	"Asian financial crisis",
}

type batchOptions struct {
	queryOptions
	queriesFile string
	outDir      string
}

func newBatchCmd(g *globalOptions) *cobra.Command {
	opts := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run a list of queries and write one result file per query",
		Long: `Run every query from --queries (one per line; blank lines and lines
starting with # are skipped), or the built-in TDT3 topics, and write a
plain-text report for each into --out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			queries := DefaultBatchQueries
			if opts.queriesFile != "" {
				var err error
				if queries, err = readQueries(opts.queriesFile); err != nil {
					return err
				}
			}
			sess, err := openSession(cmd, g.cfg, &opts.queryOptions)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
				return fmt.Errorf("%w: creating %s: %w", apperrors.ErrIO, opts.outDir, err)
			}

			out := cmd.OutOrStdout()
			styles := ui.StylesFor(out)
			failed := 0
			for _, query := range queries {
				resp, err := sess.searcher.Query(cmd.Context(), sess.snapshot, query, sess.topN)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s %q: %v\n", styles.Error.Render("failed:"), query, err)
					continue
				}
				now := time.Now()
				path := filepath.Join(opts.outDir, ui.ReportFileName(query, now))
				if err := writeReport(path, query, resp, now); err != nil {
					return err
				}
				fmt.Fprintf(out, "%-30s %3d results  %s\n", query, len(resp.Results), styles.Label.Render(path))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d queries failed", failed, len(queries))
			}
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.queriesFile, "queries", "q", "", "File with one query per line")
	cmd.Flags().StringVar(&opts.outDir, "out", "results", "Directory for result files")

	return cmd
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening query file: %w", apperrors.ErrIO, err)
	}
	defer f.Close()
	var queries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading query file: %w", apperrors.ErrIO, err)
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("%w: no queries in %s", apperrors.ErrInvalidInput, path)
	}
	return queries, nil
}

func writeReport(path, query string, resp *searcher.Response, at time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %w", apperrors.ErrIO, path, err)
	}
	if err := ui.WriteReport(f, query, resp, at); err != nil {
		f.Close()
		return fmt.Errorf("%w: writing %s: %w", apperrors.ErrIO, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", apperrors.ErrIO, path, err)
	}
	return nil
}
