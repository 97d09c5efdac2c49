package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

var news = []indexer.RawDocument{
	{ExternalID: "doc1", Text: "Hurricane George hits Florida"},
	{ExternalID: "doc2", Text: "Hurricane warnings issued for Florida"},
	{ExternalID: "doc3", Text: "Bombing in New York"},
}

type fakeRebuilder struct {
	idx func() (*indexer.Snapshot, error)
}

func (f *fakeRebuilder) Rebuild(_ context.Context, _ string) (*indexer.Snapshot, error) {
	return f.idx()
}

type fixture struct {
	mux       *http.ServeMux
	pub       *indexer.Publisher
	agg       *analytics.Aggregator
	rebuilder *fakeRebuilder
}

func setup(t *testing.T, withCache bool) *fixture {
	t.Helper()
	cfg := config.Default()
	analyzer, err := tokenizer.New(cfg.Analysis)
	require.NoError(t, err)
	idx, err := indexer.BuildIndex(context.Background(), cfg.Indexer, analyzer, corpus.Slice(news))
	require.NoError(t, err)

	pub := indexer.NewPublisher(nil)
	pub.Publish(idx, "test")

	var opts []searcher.Option
	if withCache {
		opts = append(opts, searcher.WithCache(cache.New(cache.NewMemory(16, 0))))
	}
	s, err := searcher.New(*cfg, analyzer, opts...)
	require.NoError(t, err)

	agg := analytics.NewAggregator()
	rb := &fakeRebuilder{idx: func() (*indexer.Snapshot, error) { return pub.Publish(idx, "rebuild"), nil }}
	h := New(s, pub, WithCollector(analytics.NewCollector(agg, 10)), WithRebuilder(rb))
	mux := http.NewServeMux()
	h.Register(mux)
	return &fixture{mux: mux, pub: pub, agg: agg, rebuilder: rb}
}

func (f *fixture) do(t *testing.T, method, target string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

type searchBody struct {
	Normalized string `json:"normalized"`
	TotalHits  int    `json:"total_hits"`
	Generation uint64 `json:"generation"`
	Results    []struct {
		ExternalID  string  `json:"external_id"`
		Score       float64 `json:"score"`
		Highlighted string  `json:"highlighted"`
	} `json:"results"`
}

func TestSearchPhraseAndTerms(t *testing.T) {
	f := setup(t, false)

	var body searchBody
	code := f.do(t, http.MethodGet, `/api/v1/search?q=%22new+york%22+bombing`, &body)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "doc3", body.Results[0].ExternalID)
	assert.Equal(t, "<b>Bombing</b> in <b>New</b> <b>York</b>", body.Results[0].Highlighted)
	assert.Equal(t, uint64(1), body.Generation)

	body = searchBody{}
	code = f.do(t, http.MethodGet, `/api/v1/search?q=hurricane+florida&limit=1`, &body)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, body.TotalHits)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "doc1", body.Results[0].ExternalID)

	stats := f.agg.Stats()
	assert.Equal(t, int64(2), stats.TotalSearches)
}

func TestSearchErrors(t *testing.T) {
	f := setup(t, false)
	var errBody map[string]string

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, `/api/v1/search?q=`, &errBody))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, `/api/v1/search?q=%22new+york`, &errBody))
	assert.NotEmpty(t, errBody["error"])
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, `/api/v1/search?q=storm&limit=zero`, &errBody))
	assert.Equal(t, "limit must be a positive integer", errBody["error"])

	assert.Equal(t, int64(2), f.agg.Stats().FailedSearches)
}

func TestZeroResultSearch(t *testing.T) {
	f := setup(t, false)
	var body searchBody
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, `/api/v1/search?q=tornado`, &body))
	assert.NotNil(t, body.Results)
	assert.Empty(t, body.Results)
	assert.Equal(t, int64(1), f.agg.Stats().ZeroResultCount)
}

func TestIndexStatsAndRebuild(t *testing.T) {
	f := setup(t, false)
	var info indexInfo
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/index", &info))
	assert.Equal(t, uint64(1), info.Generation)
	assert.Equal(t, 3, info.Documents)
	assert.Equal(t, "test", info.Source)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/index/rebuild", &info))
	assert.Equal(t, uint64(2), info.Generation)
	assert.Equal(t, "rebuild", info.Source)

	f.rebuilder.idx = func() (*indexer.Snapshot, error) {
		return nil, errors.Join(apperrors.ErrIndexBuild, errors.New("corpus unreadable"))
	}
	var errBody map[string]string
	assert.Equal(t, http.StatusInternalServerError, f.do(t, http.MethodPost, "/api/v1/index/rebuild", &errBody))
	assert.Equal(t, uint64(2), f.pub.Current().Generation)
}

func TestRebuildUnavailable(t *testing.T) {
	cfg := config.Default()
	analyzer, err := tokenizer.New(cfg.Analysis)
	require.NoError(t, err)
	s, err := searcher.New(*cfg, analyzer)
	require.NoError(t, err)
	mux := http.NewServeMux()
	New(s, indexer.NewPublisher(nil)).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/index/rebuild", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=storm", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDocumentLookup(t *testing.T) {
	f := setup(t, false)
	var doc map[string]any
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/documents/doc3", &doc))
	assert.Equal(t, "Bombing in New York", doc["text"])
	assert.Equal(t, float64(2), doc["doc_id"])

	var errBody map[string]string
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/documents/doc9", &errBody))
	assert.Equal(t, `document "doc9" not found`, errBody["error"])
}

func TestTermSuggestions(t *testing.T) {
	f := setup(t, false)
	var body struct {
		Prefix string   `json:"prefix"`
		Terms  []string `json:"terms"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/terms?prefix=Hu", &body))
	assert.Equal(t, "hu", body.Prefix)
	assert.Equal(t, []string{"hurricane"}, body.Terms)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/terms?prefix=zz", &body))
	assert.Equal(t, []string{}, body.Terms)

	var errBody map[string]string
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/terms", &errBody))
}

func TestCacheEndpoints(t *testing.T) {
	f := setup(t, true)
	var body searchBody
	f.do(t, http.MethodGet, "/api/v1/search?q=florida", &body)
	f.do(t, http.MethodGet, "/api/v1/search?q=florida", &body)

	var stats cache.Stats
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/cache/stats", &stats))
	assert.Equal(t, "memory", stats.Backend)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	var status map[string]string
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/cache/invalidate", &status))
	assert.Equal(t, "invalidated", status["status"])
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	f := setup(t, false)
	var status map[string]string
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/cache/stats", &status))
	assert.Equal(t, "disabled", status["status"])
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodPost, "/api/v1/cache/invalidate", &status))
}
