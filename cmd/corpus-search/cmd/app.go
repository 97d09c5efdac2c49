package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
)

// queryOptions are the flags shared by the commands that answer queries.
type queryOptions struct {
	indexPath string
	top       int
	scoring   string
	k1        float64
	b         float64
	match     string
}

func (o *queryOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.indexPath, "index", "i", "", "Index file to search (overrides indexer.indexPath)")
	cmd.Flags().IntVarP(&o.top, "top", "n", 0, "Maximum results per query (default search.topN)")
	cmd.Flags().StringVar(&o.scoring, "scoring", "", "Scoring model: bm25 or tfidf")
	cmd.Flags().Float64Var(&o.k1, "k1", 0, "BM25 term-frequency saturation")
	cmd.Flags().Float64Var(&o.b, "b", 0, "BM25 length normalization in [0,1]")
	cmd.Flags().StringVar(&o.match, "match", "", "Term matching: any or all")
}

// apply copies the flags the user set onto cfg and revalidates it.
func (o *queryOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("index") {
		cfg.Indexer.IndexPath = o.indexPath
	}
	if flags.Changed("scoring") {
		cfg.Search.Scoring = o.scoring
	}
	if flags.Changed("k1") {
		cfg.Search.K1 = o.k1
	}
	if flags.Changed("b") {
		cfg.Search.B = o.b
	}
	if flags.Changed("match") {
		cfg.Search.Match = o.match
	}
	if flags.Changed("top") {
		if o.top < 1 {
			return fmt.Errorf("--top must be positive, got %d", o.top)
		}
		cfg.Search.TopN = o.top
		cfg.Search.MaxResults = max(cfg.Search.MaxResults, o.top)
	}
	return cfg.Validate()
}

// session is a loaded index plus the searcher configured for it.
type session struct {
	searcher *searcher.Searcher
	snapshot *indexer.Snapshot
	topN     int
}

func openSession(cmd *cobra.Command, cfg *config.Config, o *queryOptions) (*session, error) {
	if err := o.apply(cmd, cfg); err != nil {
		return nil, err
	}
	analyzer, err := tokenizer.New(cfg.Analysis)
	if err != nil {
		return nil, err
	}
	idx, err := indexer.LoadIndex(cfg.Indexer.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("no index found at %s (run 'corpus-search index' first): %w", cfg.Indexer.IndexPath, err)
	}
	s, err := searcher.New(*cfg, analyzer)
	if err != nil {
		return nil, err
	}
	pub := indexer.NewPublisher(nil)
	return &session{
		searcher: s,
		snapshot: pub.Publish(idx, "file:"+cfg.Indexer.IndexPath),
		topN:     cfg.Search.TopN,
	}, nil
}
