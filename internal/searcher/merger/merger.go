// Package merger selects the top N scored documents with a bounded heap.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/ranker"
)

// TopN returns the best limit documents in rank order. A limit of zero or
// less keeps everything.
func TopN(docs []ranker.ScoredDoc, limit int) []ranker.ScoredDoc {
	if limit <= 0 || limit >= len(docs) {
		out := append([]ranker.ScoredDoc(nil), docs...)
		ranker.Sort(out)
		return out
	}
	h := &scoredDocHeap{}
	for _, doc := range docs {
		if h.Len() < limit {
			heap.Push(h, doc)
			continue
		}
		if ranker.Compare(doc, (*h)[0]) < 0 {
			(*h)[0] = doc
			heap.Fix(h, 0)
		}
	}
	result := make([]ranker.ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ranker.ScoredDoc)
	}
	return result
}

// scoredDocHeap is a min-heap on rank: the root is the worst kept document.
type scoredDocHeap []ranker.ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool {
	return ranker.Compare(h[i], h[j]) > 0
}

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ranker.ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
