// Package handler exposes the search service over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/middleware"
)

const maxSuggestions = 50

// Rebuilder is the part of service.Reloader the handler needs.
type Rebuilder interface {
	Rebuild(ctx context.Context, reason string) (*indexer.Snapshot, error)
}

type Handler struct {
	searcher  *searcher.Searcher
	publisher *indexer.Publisher
	rebuilder Rebuilder
	collector *analytics.Collector
	logger    *slog.Logger
}

type Option func(*Handler)

func WithRebuilder(r Rebuilder) Option {
	return func(h *Handler) { h.rebuilder = r }
}

func WithCollector(c *analytics.Collector) Option {
	return func(h *Handler) { h.collector = c }
}

func New(s *searcher.Searcher, publisher *indexer.Publisher, opts ...Option) *Handler {
	h := &Handler{
		searcher:  s,
		publisher: publisher,
		logger:    slog.Default().With("component", "search-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds the /api/v1 routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index", h.IndexStats)
	mux.HandleFunc("POST /api/v1/index/rebuild", h.Rebuild)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/terms", h.Terms)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

type searchResult struct {
	searcher.Result
	Highlighted string `json:"highlighted"`
}

type searchResponse struct {
	*searcher.Response
	Results []searchResult `json:"results"`
}

// Search serves GET /api/v1/search?q=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	snap := h.publisher.Current()
	resp, err := h.searcher.Query(ctx, snap, query, limit)
	if err != nil {
		log.Warn("search failed", "query", query, "error", err)
		h.track(ctx, analytics.SearchEvent{
			Type:       analytics.EventSearchFail,
			Query:      query,
			LatencyMs:  sinceMs(start),
			Generation: snap.Generation,
			Error:      err.Error(),
		})
		h.writeError(w, err)
		return
	}

	out := searchResponse{Response: resp, Results: make([]searchResult, len(resp.Results))}
	for i, res := range resp.Results {
		out.Results[i] = searchResult{Result: res, Highlighted: res.Snippet.Render(bold)}
	}

	eventType := analytics.EventSearch
	if resp.TotalHits == 0 {
		eventType = analytics.EventZeroResult
	}
	h.track(ctx, analytics.SearchEvent{
		Type:       eventType,
		Query:      query,
		Normalized: resp.Normalized,
		Terms:      resp.Terms,
		TotalHits:  resp.TotalHits,
		Returned:   len(resp.Results),
		LatencyMs:  sinceMs(start),
		CacheHit:   resp.CacheHit,
		Generation: resp.Generation,
	})
	log.Info("search completed",
		"query", query,
		"total_hits", resp.TotalHits,
		"returned", len(resp.Results),
		"cache_hit", resp.CacheHit,
		"latency_ms", sinceMs(start),
	)
	h.writeJSON(w, http.StatusOK, out)
}

// IndexStats serves GET /api/v1/index.
func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, snapshotInfo(h.publisher.Current()))
}

// Rebuild serves POST /api/v1/index/rebuild. It blocks until the new index
// is published.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if h.rebuilder == nil {
		h.writeError(w, apperrors.New(apperrors.ErrIndexNotReady, http.StatusServiceUnavailable, "rebuilds are not available"))
		return
	}
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "api"
	}
	snap, err := h.rebuilder.Rebuild(r.Context(), reason)
	if err != nil {
		logger.FromContext(r.Context()).Error("rebuild failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snapshotInfo(snap))
}

// Document serves GET /api/v1/documents/{id}.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, ok := h.publisher.Index().Lookup(id)
	if !ok {
		h.writeError(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusNotFound, "document %q not found", id))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"doc_id":      doc.ID,
		"external_id": doc.ExternalID,
		"length":      doc.Length,
		"text":        doc.Text,
	})
}

// Terms serves GET /api/v1/terms?prefix=&limit=. Index terms are lower-case
// and stemmed, so the prefix is lower-cased but not analyzed further.
func (h *Handler) Terms(w http.ResponseWriter, r *http.Request) {
	prefix := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("prefix")))
	if prefix == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'prefix' is required"))
		return
	}
	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer"))
			return
		}
		limit = min(parsed, maxSuggestions)
	}
	terms := h.publisher.Index().TermsWithPrefix(prefix, limit)
	if terms == nil {
		terms = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"prefix": prefix, "terms": terms})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	c := h.searcher.Cache()
	if c == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, c.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	c := h.searcher.Cache()
	if c == nil {
		h.writeError(w, apperrors.New(apperrors.ErrConfig, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	if err := c.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

type indexInfo struct {
	Generation   uint64    `json:"generation"`
	Source       string    `json:"source"`
	PublishedAt  time.Time `json:"published_at"`
	Documents    int       `json:"documents"`
	Terms        int       `json:"terms"`
	TotalTokens  int64     `json:"total_tokens"`
	AvgDocLength float64   `json:"avg_doc_length"`
}

func snapshotInfo(snap *indexer.Snapshot) indexInfo {
	stats := snap.Index.Stats()
	return indexInfo{
		Generation:   snap.Generation,
		Source:       snap.Source,
		PublishedAt:  snap.PublishedAt.UTC(),
		Documents:    stats.DocCount,
		Terms:        snap.Index.TermCount(),
		TotalTokens:  stats.TotalTokens,
		AvgDocLength: stats.AvgDocLength,
	}
}

func (h *Handler) track(ctx context.Context, e analytics.SearchEvent) {
	if h.collector == nil {
		return
	}
	e.Timestamp = time.Now().UTC()
	e.RequestID = middleware.GetRequestID(ctx)
	h.collector.TrackSearch(e)
}

func bold(s string) string {
	return "<b>" + s + "</b>"
}

func sinceMs(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": message})
}
