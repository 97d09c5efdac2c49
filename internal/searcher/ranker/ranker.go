// Package ranker scores documents with TF-IDF or BM25 and defines the
// result ordering: score descending, then doc ID ascending.
package ranker

import (
	"cmp"
	"slices"
)

type ScoredDoc struct {
	DocID int     `json:"doc_id"`
	Score float64 `json:"score"`
}

// Compare orders a before b when a ranks higher.
func Compare(a, b ScoredDoc) int {
	if a.Score != b.Score {
		return cmp.Compare(b.Score, a.Score)
	}
	return cmp.Compare(a.DocID, b.DocID)
}

// Sort orders docs by rank in place.
func Sort(docs []ScoredDoc) {
	slices.SortFunc(docs, Compare)
}
