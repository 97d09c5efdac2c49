package cmd

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/ui"
)

type statsOptions struct {
	indexPath string
	topTerms  int
	format    string
}

// TermFrequency is a term and the number of documents containing it.
type TermFrequency struct {
	Term    string `json:"term"`
	DocFreq int    `json:"doc_freq"`
}

// IndexReport summarizes an index file.
type IndexReport struct {
	Path         string          `json:"path"`
	FileBytes    int64           `json:"file_bytes"`
	Version      uint32          `json:"version"`
	Compressed   bool            `json:"compressed"`
	CreatedAt    time.Time       `json:"created_at"`
	Documents    int             `json:"documents"`
	Terms        int             `json:"terms"`
	TotalTokens  int64           `json:"total_tokens"`
	AvgDocLength float64         `json:"avg_doc_length"`
	TopTerms     []TermFrequency `json:"top_terms"`
}

func newStatsCmd(g *globalOptions) *cobra.Command {
	opts := &statsOptions{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show statistics for the saved index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := g.cfg.Indexer.IndexPath
			if cmd.Flags().Changed("index") {
				path = opts.indexPath
			}
			report, err := buildIndexReport(path, opts.topTerms)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch opts.format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			case "text":
				renderIndexReport(cmd, report)
				return nil
			default:
				return fmt.Errorf("--format must be text or json, got %q", opts.format)
			}
		},
	}

	cmd.Flags().StringVarP(&opts.indexPath, "index", "i", "", "Index file (overrides indexer.indexPath)")
	cmd.Flags().IntVar(&opts.topTerms, "top-terms", 10, "Number of most frequent terms to list")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text or json")

	return cmd
}

func buildIndexReport(path string, topTerms int) (*IndexReport, error) {
	header, err := segment.Stat(path)
	if err != nil {
		return nil, err
	}
	idx, err := indexer.LoadIndex(path)
	if err != nil {
		return nil, err
	}
	report := &IndexReport{
		Path:       path,
		Version:    header.Version,
		Compressed: header.Compressed(),
		CreatedAt:  time.Unix(header.CreatedAt, 0).UTC(),
		Terms:      idx.TermCount(),
		TopTerms:   mostFrequentTerms(idx, topTerms),
	}
	if info, err := os.Stat(path); err == nil {
		report.FileBytes = info.Size()
	}
	stats := idx.Stats()
	report.Documents = stats.DocCount
	report.TotalTokens = stats.TotalTokens
	report.AvgDocLength = stats.AvgDocLength
	return report, nil
}

// mostFrequentTerms returns the n terms with the highest document frequency,
// ties broken alphabetically.
func mostFrequentTerms(idx *index.InvertedIndex, n int) []TermFrequency {
	var terms []TermFrequency
	for term, postings := range idx.Entries() {
		terms = append(terms, TermFrequency{Term: term, DocFreq: len(postings)})
	}
	slices.SortFunc(terms, func(a, b TermFrequency) int {
		if c := cmp.Compare(b.DocFreq, a.DocFreq); c != 0 {
			return c
		}
		return cmp.Compare(a.Term, b.Term)
	})
	if n >= 0 && len(terms) > n {
		terms = terms[:n]
	}
	if terms == nil {
		terms = []TermFrequency{}
	}
	return terms
}

func renderIndexReport(cmd *cobra.Command, r *IndexReport) {
	out := cmd.OutOrStdout()
	styles := ui.StylesFor(out)
	row := func(label string, value any) {
		fmt.Fprintf(out, "  %s %v\n", styles.Label.Render(fmt.Sprintf("%-16s", label)), value)
	}
	fmt.Fprintln(out, styles.Header.Render("Index "+r.Path))
	row("Format version:", r.Version)
	row("Compressed:", r.Compressed)
	row("Created:", r.CreatedAt.Format(time.RFC3339))
	row("File size:", fmt.Sprintf("%d bytes", r.FileBytes))
	row("Documents:", r.Documents)
	row("Terms:", r.Terms)
	row("Tokens:", r.TotalTokens)
	row("Avg doc length:", fmt.Sprintf("%.2f", r.AvgDocLength))
	if len(r.TopTerms) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, styles.Header.Render("Most frequent terms"))
	for i, tf := range r.TopTerms {
		fmt.Fprintf(out, "  %3d. %-20s %d docs\n", i+1, tf.Term, tf.DocFreq)
	}
}
