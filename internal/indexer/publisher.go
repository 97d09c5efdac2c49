package indexer

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
)

// Snapshot is one published index together with its generation number.
type Snapshot struct {
	Index       *index.InvertedIndex
	Generation  uint64
	PublishedAt time.Time
	Source      string
}

// Publisher holds the live index. Readers call Current without locking and
// always observe a complete index; Publish swaps in a replacement atomically.
type Publisher struct {
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewPublisher starts with an empty index at generation zero.
func NewPublisher(m *metrics.Metrics) *Publisher {
	p := &Publisher{
		logger:  slog.Default().With("component", "publisher"),
		metrics: m,
	}
	p.current.Store(&Snapshot{Index: index.Empty(), PublishedAt: time.Now(), Source: "empty"})
	return p
}

func (p *Publisher) Current() *Snapshot {
	return p.current.Load()
}

// Index is shorthand for Current().Index.
func (p *Publisher) Index() *index.InvertedIndex {
	return p.current.Load().Index
}

// Publish makes idx the live index and returns its snapshot. Queries already
// running keep the index they started with.
func (p *Publisher) Publish(idx *index.InvertedIndex, source string) *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.current.Load()
	snap := &Snapshot{
		Index:       idx,
		Generation:  prev.Generation + 1,
		PublishedAt: time.Now(),
		Source:      source,
	}
	p.current.Store(snap)
	if p.metrics != nil {
		p.metrics.IndexDocuments.Set(float64(idx.DocCount()))
		p.metrics.IndexTerms.Set(float64(idx.TermCount()))
		p.metrics.IndexGeneration.Set(float64(snap.Generation))
	}
	p.logger.Info("index published",
		"generation", snap.Generation,
		"source", source,
		"docs", idx.DocCount(),
		"terms", idx.TermCount(),
	)
	return snap
}
