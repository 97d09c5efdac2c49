// Package indexer builds immutable inverted indexes from a document stream,
// persists and loads them, and publishes the live index for readers.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/validator"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
)

// RawDocument is one corpus document before analysis.
type RawDocument struct {
	ExternalID string
	Text       string
}

// DocumentStream yields documents in any order. A non-nil error aborts the
// build.
type DocumentStream = iter.Seq2[RawDocument, error]

// Builder analyzes documents in batches on a worker pool, each batch filling
// its own index.Partial, and merges the partials into one index.
type Builder struct {
	cfg      config.IndexerConfig
	analyzer tokenizer.Analyzer
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Builder)

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

func NewBuilder(cfg config.IndexerConfig, analyzer tokenizer.Analyzer, opts ...Option) (*Builder, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("%w: analyzer is required", apperrors.ErrConfig)
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("%w: indexer workers must be >= 1, got %d", apperrors.ErrConfig, cfg.Workers)
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("%w: indexer batch size must be >= 1, got %d", apperrors.ErrConfig, cfg.BatchSize)
	}
	b := &Builder{
		cfg:      cfg,
		analyzer: analyzer,
		logger:   slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Build consumes docs and returns the finished index. Any stream, validation
// or analysis error aborts the whole build and returns an error wrapping
// ErrIndexBuild; no partial index is ever returned. Cancelling ctx stops the
// build between documents.
func (b *Builder) Build(ctx context.Context, docs DocumentStream) (*index.InvertedIndex, error) {
	start := time.Now()
	idx, err := b.build(ctx, docs)
	if err != nil {
		status := "failed"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = "cancelled"
		}
		b.observeBuild(status, 0)
		b.logger.Error("index build aborted", "status", status, "error", err, "elapsed", time.Since(start))
		return nil, fmt.Errorf("%w: %w", apperrors.ErrIndexBuild, err)
	}
	elapsed := time.Since(start)
	b.observeBuild("success", elapsed)
	b.logger.Info("index build complete",
		"docs", idx.DocCount(),
		"terms", idx.TermCount(),
		"tokens", idx.Stats().TotalTokens,
		"workers", b.cfg.Workers,
		"elapsed", elapsed,
	)
	return idx, nil
}

func (b *Builder) build(parent context.Context, docs DocumentStream) (*index.InvertedIndex, error) {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	pool, err := ants.NewPool(b.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		partials []*index.Partial
		total    int
	)
	submit := func(batch []RawDocument) {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			part, err := b.analyzeBatch(ctx, batch)
			if err != nil {
				cancel(err)
				return
			}
			mu.Lock()
			partials = append(partials, part)
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			cancel(fmt.Errorf("submitting batch: %w", err))
		}
	}

	seen := make(map[string]struct{})
	batch := make([]RawDocument, 0, b.cfg.BatchSize)
	for doc, err := range docs {
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			cancel(fmt.Errorf("reading corpus: %w", err))
			break
		}
		if err := validator.ValidateDocument(doc.ExternalID, doc.Text, b.cfg.MaxDocumentBytes); err != nil {
			cancel(err)
			break
		}
		if _, dup := seen[doc.ExternalID]; dup {
			cancel(fmt.Errorf("%w: %q", index.ErrDuplicateDocument, doc.ExternalID))
			break
		}
		seen[doc.ExternalID] = struct{}{}
		total++
		batch = append(batch, doc)
		if len(batch) == b.cfg.BatchSize {
			submit(batch)
			batch = make([]RawDocument, 0, b.cfg.BatchSize)
		}
	}
	if len(batch) > 0 && ctx.Err() == nil {
		submit(batch)
	}
	wg.Wait()

	if err := context.Cause(ctx); err != nil {
		return nil, err
	}

	b.logger.Debug("merging partial indexes", "partials", len(partials), "docs", total)
	merged, err := index.Merge(partials...)
	if err != nil {
		return nil, fmt.Errorf("merging partial indexes: %w", err)
	}
	return merged.Freeze()
}

func (b *Builder) analyzeBatch(ctx context.Context, batch []RawDocument) (*index.Partial, error) {
	part := index.NewPartial()
	for _, doc := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tokens, err := b.analyzer.Analyze(doc.Text)
		if err != nil {
			return nil, fmt.Errorf("analyzing document %q: %w", doc.ExternalID, err)
		}
		if err := part.AddDocument(doc.ExternalID, doc.Text, tokens); err != nil {
			return nil, err
		}
	}
	if b.metrics != nil {
		b.metrics.DocsIndexedTotal.Add(float64(len(batch)))
	}
	b.logger.Debug("batch analyzed", "docs", len(batch), "terms", part.TermCount())
	return part, nil
}

func (b *Builder) observeBuild(status string, elapsed time.Duration) {
	if b.metrics == nil {
		return
	}
	b.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		b.metrics.IndexBuildDuration.Observe(elapsed.Seconds())
	}
}
