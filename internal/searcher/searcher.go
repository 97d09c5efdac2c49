// Package searcher answers free-text queries against an inverted index. It
// ties together the parser, the scorer, the executor and the snippet
// generator, and optionally memoizes responses per index generation.
package searcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/snippet"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/tracing"
)

// Result is one ranked document.
type Result struct {
	DocID      int             `json:"doc_id"`
	ExternalID string          `json:"external_id"`
	Score      float64         `json:"score"`
	Snippet    snippet.Snippet `json:"snippet"`
}

// Response carries the results of one query plus what the caller needs to
// report on it.
type Response struct {
	Query      string         `json:"query"`
	Normalized string         `json:"normalized"`
	Terms      []string       `json:"terms"`
	TotalHits  int            `json:"total_hits"`
	Results    []Result       `json:"results"`
	TermStats  map[string]int `json:"term_stats,omitempty"`
	Generation uint64         `json:"generation"`
	CacheHit   bool           `json:"cache_hit"`
	TookMs     float64        `json:"took_ms"`
}

type Searcher struct {
	analyzer   tokenizer.Analyzer
	scorer     ranker.Scorer
	match      executor.MatchMode
	matchName  string
	executor   *executor.Executor
	snippets   *snippet.Generator
	topN       int
	maxResults int
	tracing    bool
	cache      *cache.QueryCache
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type Option func(*Searcher)

// WithCache enables response caching for Query.
func WithCache(c *cache.QueryCache) Option {
	return func(s *Searcher) { s.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Searcher) { s.metrics = m }
}

// New builds a Searcher from the search, snippet and tracing settings of cfg.
// The analyzer must be the one the index was built with.
func New(cfg config.Config, analyzer tokenizer.Analyzer, opts ...Option) (*Searcher, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("%w: searcher needs an analyzer", apperrors.ErrConfig)
	}
	mode, err := ranker.ParseMode(cfg.Search.Scoring)
	if err != nil {
		return nil, err
	}
	scorer, err := ranker.New(mode, ranker.Params{K1: cfg.Search.K1, B: cfg.Search.B})
	if err != nil {
		return nil, err
	}
	match, err := executor.ParseMatchMode(cfg.Search.Match)
	if err != nil {
		return nil, err
	}
	matchName := "any"
	if match == executor.MatchAll {
		matchName = "all"
	}
	s := &Searcher{
		analyzer:   analyzer,
		scorer:     scorer,
		match:      match,
		matchName:  matchName,
		executor:   executor.New(scorer, executor.WithMatchMode(match)),
		snippets:   snippet.New(cfg.Snippet),
		topN:       cfg.Search.TopN,
		maxResults: cfg.Search.MaxResults,
		tracing:    cfg.Tracing.Enabled,
		logger:     slog.Default().With("component", "searcher"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Search runs query against idx and returns at most topN results. A topN of
// zero or less uses the configured default.
func (s *Searcher) Search(ctx context.Context, idx *index.InvertedIndex, query string, topN int) ([]Result, error) {
	resp, err := s.Query(ctx, &indexer.Snapshot{Index: idx}, query, topN)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Query runs query against a published snapshot. When a cache is attached,
// responses are shared between identical normalized queries on indexes with
// the same contents.
func (s *Searcher) Query(ctx context.Context, snap *indexer.Snapshot, query string, topN int) (*Response, error) {
	start := time.Now()
	if s.tracing {
		var span *tracing.Span
		ctx, span = tracing.Start(ctx, "search")
		span.SetAttr("query", query)
		defer span.End()
	}
	if snap == nil || snap.Index == nil {
		return nil, apperrors.ErrIndexNotReady
	}
	topN = s.limit(topN)

	q, err := s.parse(ctx, query)
	if err != nil {
		s.observe("parse_error", "none", 0, start)
		return nil, err
	}

	cacheStatus := "none"
	var resp *Response
	if s.cache != nil {
		resp, err = s.cached(ctx, snap, q, topN)
		cacheStatus = "miss"
		if resp != nil && resp.CacheHit {
			cacheStatus = "hit"
		}
	} else {
		resp, err = s.execute(ctx, snap, q, topN)
	}
	if err != nil {
		s.observe("error", cacheStatus, 0, start)
		return nil, err
	}
	resp.Query = query
	resp.TookMs = float64(time.Since(start).Microseconds()) / 1000

	resultType := "hit"
	if len(resp.Results) == 0 {
		resultType = "zero_result"
	}
	s.observe(resultType, cacheStatus, len(resp.Results), start)
	logger.FromContext(ctx).Debug("search completed",
		"query", resp.Normalized,
		"generation", resp.Generation,
		"total_hits", resp.TotalHits,
		"returned", len(resp.Results),
		"cache", cacheStatus,
		"took_ms", resp.TookMs,
	)
	return resp, nil
}

// Analyzer returns the analyzer queries are normalized with.
func (s *Searcher) Analyzer() tokenizer.Analyzer { return s.analyzer }

// Cache returns the attached cache, or nil.
func (s *Searcher) Cache() *cache.QueryCache { return s.cache }

func (s *Searcher) limit(topN int) int {
	if topN <= 0 {
		topN = s.topN
	}
	if s.maxResults > 0 && topN > s.maxResults {
		topN = s.maxResults
	}
	return topN
}

func (s *Searcher) parse(ctx context.Context, query string) (*parser.Query, error) {
	if s.tracing {
		_, span := tracing.Start(ctx, "parse")
		defer span.End()
	}
	return parser.Parse(query, s.analyzer)
}

func (s *Searcher) cached(ctx context.Context, snap *indexer.Snapshot, q *parser.Query, topN int) (*Response, error) {
	params := s.scorer.Params()
	key := cache.Key{
		Index:      snap.Index.Fingerprint(),
		Query:      q.String(),
		TopN:       topN,
		Mode:       s.scorer.Mode().String(),
		K1:         params.K1,
		B:          params.B,
		Match:      s.matchName,
	}
	data, hit, err := s.cache.GetOrCompute(ctx, key, func() ([]byte, error) {
		resp, err := s.execute(ctx, snap, q, topN)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	})
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding cached response: %w", apperrors.ErrInternal, err)
	}
	resp.CacheHit = hit
	resp.Generation = snap.Generation
	return &resp, nil
}

func (s *Searcher) execute(ctx context.Context, snap *indexer.Snapshot, q *parser.Query, topN int) (*Response, error) {
	idx := snap.Index
	if s.tracing {
		var span *tracing.Span
		ctx, span = tracing.Start(ctx, "execute")
		defer span.End()
	}
	out, err := s.executor.Execute(ctx, idx, q, topN)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrTimeout, err)
		}
		return nil, err
	}

	resp := &Response{
		Normalized: q.String(),
		Terms:      q.Terms(),
		TotalHits:  out.TotalHits,
		Results:    make([]Result, 0, len(out.Hits)),
		TermStats:  out.TermStats,
		Generation: snap.Generation,
	}
	if resp.Terms == nil {
		resp.Terms = []string{}
	}
	for _, hit := range out.Hits {
		doc, ok := idx.Document(hit.DocID)
		if !ok {
			return nil, fmt.Errorf("%w: hit for unknown document %d", apperrors.ErrInternal, hit.DocID)
		}
		resp.Results = append(resp.Results, Result{
			DocID:      hit.DocID,
			ExternalID: doc.ExternalID,
			Score:      hit.Score,
			Snippet:    s.snippets.Generate(doc, hit.Matches),
		})
	}
	return resp, nil
}

func (s *Searcher) observe(resultType, cacheStatus string, results int, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	s.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	if resultType == "hit" || resultType == "zero_result" {
		s.metrics.SearchResultsCount.Observe(float64(results))
	}
}

// Search is a one-shot query with the default analysis and snippet settings
// and the given scoring mode.
func Search(ctx context.Context, idx *index.InvertedIndex, query string, topN int, mode ranker.Mode, params ranker.Params) ([]Result, error) {
	cfg := config.Default()
	cfg.Search.Scoring = mode.String()
	cfg.Search.K1 = params.K1
	cfg.Search.B = params.B
	cfg.Search.MaxResults = 0
	analyzer, err := tokenizer.New(cfg.Analysis)
	if err != nil {
		return nil, err
	}
	s, err := New(*cfg, analyzer)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, idx, query, topN)
}
