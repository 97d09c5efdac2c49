package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/kafka"
)

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
}

func (r *recordingPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func search(q string, hits int, latency float64, cached bool) SearchEvent {
	typ := EventSearch
	if hits == 0 {
		typ = EventZeroResult
	}
	return SearchEvent{Type: typ, Query: q, Normalized: q, TotalHits: hits, LatencyMs: latency, CacheHit: cached}
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	agg.now = func() time.Time { return agg.startTime.Add(2 * time.Minute) }

	agg.RecordSearch(search("hurricane", 3, 1, false))
	agg.RecordSearch(search("hurricane", 3, 2, true))
	agg.RecordSearch(search("tornado", 0, 3, false))
	agg.RecordSearch(search("bomb", 1, 4, false))
	agg.RecordSearch(SearchEvent{Type: EventSearchFail, Query: `"bad`})

	stats := agg.Stats()
	assert.Equal(t, int64(5), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.FailedSearches)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(3), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.InDelta(t, 2.5, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, 2.0, stats.P50LatencyMs)
	assert.Equal(t, 4.0, stats.P99LatencyMs)
	assert.InDelta(t, 2.5, stats.QueriesPerMinute, 1e-9)
	assert.Equal(t, []QueryCount{{"hurricane", 2}, {"bomb", 1}, {"tornado", 1}}, stats.TopQueries)
	assert.Equal(t, []QueryCount{{"tornado", 1}}, stats.ZeroResultQueries)
}

func TestAggregatorIndexEvents(t *testing.T) {
	agg := NewAggregator()
	agg.RecordIndex(IndexEvent{Type: EventIndexBuild, Status: "success", Generation: 1, Documents: 3})
	agg.RecordIndex(IndexEvent{Type: EventIndexBuild, Status: "failed", Error: "boom"})

	stats := agg.Stats()
	assert.Equal(t, int64(2), stats.IndexBuilds)
	assert.Equal(t, int64(1), stats.FailedIndexBuilds)
	require.NotNil(t, stats.LastBuild)
	assert.Equal(t, "boom", stats.LastBuild.Error)
}

func TestLatencyWindowIsBounded(t *testing.T) {
	agg := NewAggregator()
	for i := range latencyWindow + 50 {
		agg.RecordSearch(search("q", 1, float64(i), false))
	}
	assert.Len(t, agg.latencies, latencyWindow)
	assert.Equal(t, float64(50), slicesMin(agg.latencies))
}

func slicesMin(v []float64) float64 {
	m := v[0]
	for _, x := range v {
		m = min(m, x)
	}
	return m
}

func TestCollectorForwardsInBatches(t *testing.T) {
	pub := &recordingPublisher{}
	agg := NewAggregator()
	c := NewCollector(agg, 100, WithPublisher(pub), WithBatching(2, time.Hour))
	c.Start(context.Background())

	c.TrackSearch(search("a", 1, 1, false))
	c.TrackSearch(search("b", 1, 1, false))
	c.TrackIndex(IndexEvent{Type: EventIndexBuild, Status: "success"})

	assert.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, 5*time.Millisecond)
	c.Close()
	assert.Equal(t, 3, pub.count())
	assert.Equal(t, int64(2), agg.Stats().TotalSearches)

	c.TrackSearch(search("late", 1, 1, false))
	assert.Equal(t, 3, pub.count())
	assert.Equal(t, int64(3), agg.Stats().TotalSearches)
}

func TestCollectorWithoutPublisherOnlyAggregates(t *testing.T) {
	agg := NewAggregator()
	c := NewCollector(agg, 1)
	c.Start(context.Background())
	c.TrackSearch(search("a", 1, 1, false))
	c.TrackSearch(search("b", 1, 1, false))
	c.Close()
	assert.Equal(t, int64(2), agg.Stats().TotalSearches)
}

func TestCollectorFlushesOnCancel(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(nil, 100, WithPublisher(pub), WithBatching(100, time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	c.TrackSearch(search("a", 1, 1, false))
	cancel()
	c.Close()
	assert.Equal(t, 1, pub.count())
}

func TestHandlerServesStats(t *testing.T) {
	agg := NewAggregator()
	agg.RecordSearch(search("hurricane", 2, 1, false))
	rec := httptest.NewRecorder()
	NewHandler(agg).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var got AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(1), got.TotalSearches)
}

func TestHandlerTopParameter(t *testing.T) {
	agg := NewAggregator()
	for _, q := range []string{"florida", "florida", "hurricane", "bombing"} {
		agg.RecordSearch(search(q, 1, 1, false))
	}
	h := NewHandler(agg)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []QueryCount{{Query: "florida", Count: 2}}, got.TopQueries)

	for _, bad := range []string{"0", "101", "many"} {
		rec := httptest.NewRecorder()
		h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top="+bad, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}
