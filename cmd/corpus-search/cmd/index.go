package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/service"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/ui"
)

type indexOptions struct {
	corpusPath string
	output     string
	workers    int
	format     string
	noCompress bool
}

func newIndexCmd(g *globalOptions) *cobra.Command {
	opts := &indexOptions{}

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the index from the corpus and save it",
		Long: `Read every document from the configured corpus, build the inverted
index in parallel, and write it to the index file.

Examples:
  corpus-search index --corpus data/tdt3 --output data/tdt3.csx
  corpus-search index --workers 8 --format tdt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			if cmd.Flags().Changed("corpus") {
				cfg.Corpus.Source = "dir"
				cfg.Corpus.Path = opts.corpusPath
			}
			if cmd.Flags().Changed("output") {
				cfg.Indexer.IndexPath = opts.output
			}
			if cmd.Flags().Changed("workers") {
				cfg.Indexer.Workers = opts.workers
				cfg.Corpus.LoadWorkers = opts.workers
			}
			if cmd.Flags().Changed("format") {
				cfg.Corpus.Format = opts.format
			}
			if opts.noCompress {
				cfg.Indexer.Compress = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			source, err := corpus.Open(ctx, *cfg)
			if err != nil {
				return err
			}
			defer source.Close()

			analyzer, err := tokenizer.New(cfg.Analysis)
			if err != nil {
				return err
			}
			reloader, err := service.NewReloader(*cfg, analyzer, indexer.NewPublisher(nil), source, nil)
			if err != nil {
				return err
			}
			start := time.Now()
			snap, err := reloader.Rebuild(ctx, "cli")
			if err != nil {
				return err
			}

			styles := ui.StylesFor(cmd.OutOrStdout())
			stats := snap.Index.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, styles.Header.Render("Index built"))
			fmt.Fprintf(out, "  %s %s\n", styles.Label.Render("Source:   "), source.Describe())
			fmt.Fprintf(out, "  %s %d\n", styles.Label.Render("Documents:"), stats.DocCount)
			fmt.Fprintf(out, "  %s %d\n", styles.Label.Render("Terms:    "), snap.Index.TermCount())
			fmt.Fprintf(out, "  %s %d\n", styles.Label.Render("Tokens:   "), stats.TotalTokens)
			fmt.Fprintf(out, "  %s %s\n", styles.Label.Render("Saved to: "), cfg.Indexer.IndexPath)
			fmt.Fprintf(out, "  %s %s\n", styles.Label.Render("Elapsed:  "), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.corpusPath, "corpus", "", "Corpus directory or file (overrides corpus.path)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Index file to write (overrides indexer.indexPath)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Parallel workers for loading and indexing")
	cmd.Flags().StringVar(&opts.format, "format", "", "Corpus format: auto, tdt, html, text")
	cmd.Flags().BoolVar(&opts.noCompress, "no-compress", false, "Write the index without zstd compression")

	return cmd
}
