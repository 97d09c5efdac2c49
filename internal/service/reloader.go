// Package service owns the live index in serve mode: it loads the persisted
// index at startup and rebuilds, saves and republishes it on demand.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
)

// Reloader serializes rebuilds. A failed or cancelled rebuild leaves the
// published index untouched.
type Reloader struct {
	cfg       config.IndexerConfig
	builder   *indexer.Builder
	publisher *indexer.Publisher
	source    corpus.Source
	collector *analytics.Collector
	logger    *slog.Logger

	// mu serializes loads and rebuilds; statusMu guards the outcome of the
	// last one so readiness checks never wait on a running build.
	mu          sync.Mutex
	statusMu    sync.Mutex
	lastErr     error
	lastAttempt time.Time
}

type Option func(*Reloader)

// WithCollector reports every load and rebuild as an IndexEvent.
func WithCollector(c *analytics.Collector) Option {
	return func(r *Reloader) { r.collector = c }
}

func NewReloader(cfg config.Config, analyzer tokenizer.Analyzer, publisher *indexer.Publisher, source corpus.Source, m *metrics.Metrics, opts ...Option) (*Reloader, error) {
	if publisher == nil || source == nil {
		return nil, fmt.Errorf("%w: reloader needs a publisher and a corpus source", apperrors.ErrConfig)
	}
	builder, err := indexer.NewBuilder(cfg.Indexer, analyzer, indexer.WithMetrics(m))
	if err != nil {
		return nil, err
	}
	r := &Reloader{
		cfg:       cfg.Indexer,
		builder:   builder,
		publisher: publisher,
		source:    source,
		logger:    slog.Default().With("component", "reloader"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Load publishes the index saved at the configured path.
func (r *Reloader) Load(ctx context.Context) (*indexer.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	start := time.Now()
	idx, err := indexer.LoadIndex(r.cfg.IndexPath)
	if err != nil {
		r.record("file", nil, start, err)
		return nil, err
	}
	snap := r.publisher.Publish(idx, "file:"+r.cfg.IndexPath)
	r.record("file", snap, start, nil)
	return snap, nil
}

// LoadOrBuild loads the saved index and falls back to a rebuild when there
// is none or it cannot be read.
func (r *Reloader) LoadOrBuild(ctx context.Context) (*indexer.Snapshot, error) {
	snap, err := r.Load(ctx)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, apperrors.ErrIO) {
		return nil, err
	}
	r.logger.Warn("saved index unavailable, rebuilding from corpus", "path", r.cfg.IndexPath, "error", err)
	return r.Rebuild(ctx, "startup")
}

// Rebuild reads the corpus, builds a new index, saves it when an index path
// is configured, and publishes it. Concurrent calls run one after another.
func (r *Reloader) Rebuild(ctx context.Context, reason string) (*indexer.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	start := time.Now()
	r.logger.Info("rebuilding index", "reason", reason, "source", r.source.Describe())

	idx, err := r.builder.Build(ctx, r.source.Documents(ctx))
	if err != nil {
		r.record(reason, nil, start, err)
		return nil, err
	}
	if r.cfg.IndexPath != "" {
		if err := indexer.SaveIndex(idx, r.cfg.IndexPath, r.cfg.Compress); err != nil {
			r.record(reason, nil, start, err)
			return nil, err
		}
	}
	snap := r.publisher.Publish(idx, r.source.Describe())
	r.record(reason, snap, start, nil)
	return snap, nil
}

// LastAttempt returns when the last load or rebuild ran and its error, nil if
// it succeeded.
func (r *Reloader) LastAttempt() (time.Time, error) {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	return r.lastAttempt, r.lastErr
}

func (r *Reloader) Publisher() *indexer.Publisher { return r.publisher }

// record must be called with mu held.
func (r *Reloader) record(source string, snap *indexer.Snapshot, start time.Time, err error) {
	r.statusMu.Lock()
	r.lastErr = err
	r.lastAttempt = time.Now()
	r.statusMu.Unlock()
	if err != nil {
		r.logger.Error("index reload failed", "source", source, "error", err, "elapsed", time.Since(start))
	}
	if r.collector == nil {
		return
	}
	ev := analytics.IndexEvent{
		Type:       analytics.EventIndexBuild,
		Status:     "success",
		Source:     source,
		DurationMs: float64(time.Since(start).Microseconds()) / 1000,
		Timestamp:  time.Now().UTC(),
	}
	if err != nil {
		ev.Status = "failed"
		ev.Error = err.Error()
	} else {
		ev.Generation = snap.Generation
		ev.Documents = snap.Index.DocCount()
		ev.Terms = snap.Index.TermCount()
	}
	r.collector.TrackIndex(ev)
}
