package indexer

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
)

// BuildIndex is a one-shot build with a fresh Builder.
func BuildIndex(ctx context.Context, cfg config.IndexerConfig, analyzer tokenizer.Analyzer, docs DocumentStream) (*index.InvertedIndex, error) {
	b, err := NewBuilder(cfg, analyzer)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx, docs)
}

// SaveIndex writes idx to path atomically. Errors wrap ErrIO.
func SaveIndex(idx *index.InvertedIndex, path string, compress bool) error {
	start := time.Now()
	header, err := segment.Write(path, idx, segment.WriteOptions{Compress: compress})
	if err != nil {
		return err
	}
	slog.Default().With("component", "indexer").Info("index saved",
		"path", path,
		"docs", header.DocCount,
		"terms", header.TermCount,
		"compressed", header.Compressed(),
		"elapsed", time.Since(start),
	)
	return nil
}

// LoadIndex reads an index written by SaveIndex. Missing or corrupt files
// return an error wrapping ErrIO and no index.
func LoadIndex(path string) (*index.InvertedIndex, error) {
	start := time.Now()
	idx, err := segment.Read(path)
	if err != nil {
		return nil, err
	}
	slog.Default().With("component", "indexer").Info("index loaded",
		"path", path,
		"docs", idx.DocCount(),
		"terms", idx.TermCount(),
		"elapsed", time.Since(start),
	)
	return idx, nil
}
