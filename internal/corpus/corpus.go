// Package corpus turns document collections into indexer.DocumentStream
// values. Directory corpora may hold TDT/TREC SGML files (optionally
// gzipped), HTML pages or plain text; SQL corpora are read from a
// PostgreSQL or SQLite table of (id, body) rows.
package corpus

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// Source produces a fresh document stream for every index build.
type Source interface {
	Documents(ctx context.Context) indexer.DocumentStream
	Describe() string
	Close() error
}

// Open returns the source configured in cfg.Corpus.
func Open(ctx context.Context, cfg config.Config) (Source, error) {
	switch cfg.Corpus.Source {
	case "", "dir":
		format, err := ParseFormat(cfg.Corpus.Format)
		if err != nil {
			return nil, err
		}
		return &DirSource{
			Path: cfg.Corpus.Path,
			Options: Options{
				Format:          format,
				Workers:         cfg.Corpus.LoadWorkers,
				MaxDocumentSize: cfg.Indexer.MaxDocumentBytes,
			},
		}, nil
	case "sql":
		return OpenSQL(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown corpus source %q", apperrors.ErrConfig, cfg.Corpus.Source)
	}
}

// Slice streams docs in order.
func Slice(docs []indexer.RawDocument) indexer.DocumentStream {
	return func(yield func(indexer.RawDocument, error) bool) {
		for _, d := range docs {
			if !yield(d, nil) {
				return
			}
		}
	}
}

// Collect drains a stream into memory, stopping at the first error.
func Collect(stream indexer.DocumentStream) ([]indexer.RawDocument, error) {
	var out []indexer.RawDocument
	for doc, err := range stream {
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// DirSource is a Source over a directory or single file.
type DirSource struct {
	Path    string
	Options Options
}

func (d *DirSource) Documents(ctx context.Context) indexer.DocumentStream {
	opts := d.Options
	opts.Context = ctx
	return Dir(d.Path, opts)
}

func (d *DirSource) Describe() string { return "dir:" + d.Path }

func (d *DirSource) Close() error { return nil }
