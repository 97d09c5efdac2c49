package merger

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/ranker"
)

func TestTopNMatchesFullSort(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	docs := make([]ranker.ScoredDoc, 500)
	for i := range docs {
		docs[i] = ranker.ScoredDoc{DocID: i, Score: float64(rng.Intn(20))}
	}
	full := slices.Clone(docs)
	ranker.Sort(full)

	for _, limit := range []int{1, 7, 10, 499, 500, 1000, 0} {
		got := TopN(docs, limit)
		want := full
		if limit > 0 && limit < len(full) {
			want = full[:limit]
		}
		assert.Equal(t, want, got, "limit %d", limit)
	}
}

func TestTopNDoesNotMutateInput(t *testing.T) {
	docs := []ranker.ScoredDoc{{DocID: 2, Score: 1}, {DocID: 1, Score: 3}}
	_ = TopN(docs, 0)
	assert.Equal(t, []ranker.ScoredDoc{{DocID: 2, Score: 1}, {DocID: 1, Score: 3}}, docs)
}

func TestTopNEmpty(t *testing.T) {
	assert.Empty(t, TopN(nil, 10))
}

func BenchmarkTopN(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	docs := make([]ranker.ScoredDoc, 10000)
	for i := range docs {
		docs[i] = ranker.ScoredDoc{DocID: i, Score: rng.Float64()}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = TopN(docs, 10)
	}
}
