// Package index holds the positional inverted index: the mutable Partial used
// while building, the deterministic Merge of partials, and the immutable
// InvertedIndex that queries run against.
package index

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
)

// ErrCorrupt reports an index whose contents violate the ordering or
// consistency rules.
var ErrCorrupt = errors.New("index structure is inconsistent")

// InvertedIndex maps terms to posting lists and keeps the document table
// and corpus statistics. It is never modified after construction, so any
// number of goroutines may read it concurrently. Slices returned by its
// accessors are shared and must be treated as read-only.
type InvertedIndex struct {
	terms      []string
	postings   map[string]PostingList
	docs       []Document
	byExternal map[string]int
	stats      Stats
	contentID  uint64
}

// Empty returns an index over an empty corpus.
func Empty() *InvertedIndex {
	return build([]TermEntry{}, []Document{})
}

func build(entries []TermEntry, docs []Document) *InvertedIndex {
	idx := &InvertedIndex{
		terms:      make([]string, len(entries)),
		postings:   make(map[string]PostingList, len(entries)),
		docs:       docs,
		byExternal: make(map[string]int, len(docs)),
		stats:      newStats(docs),
	}
	for i, e := range entries {
		idx.terms[i] = e.Term
		idx.postings[e.Term] = e.Postings
	}
	for i := range docs {
		idx.byExternal[docs[i].ExternalID] = docs[i].ID
	}
	idx.contentID = fingerprint(idx.terms, idx.postings, docs)
	return idx
}

// New assembles an index from already-built parts, checking every structural
// rule. It is used when loading a persisted index.
func New(entries []TermEntry, docs []Document) (*InvertedIndex, error) {
	for i := range docs {
		d := &docs[i]
		if d.ID != i {
			return nil, fmt.Errorf("%w: document %d has id %d", ErrCorrupt, i, d.ID)
		}
		if len(d.Spans) != d.Length {
			return nil, fmt.Errorf("%w: document %q has %d spans for length %d", ErrCorrupt, d.ExternalID, len(d.Spans), d.Length)
		}
		for _, sp := range d.Spans {
			if sp.Start < 0 || sp.End < sp.Start || sp.End > len(d.Text) {
				return nil, fmt.Errorf("%w: document %q has span out of range", ErrCorrupt, d.ExternalID)
			}
		}
		if i > 0 && docs[i-1].ExternalID >= d.ExternalID {
			return nil, fmt.Errorf("%w: documents not ordered by external id at %d", ErrCorrupt, i)
		}
	}
	for i, e := range entries {
		if i > 0 && entries[i-1].Term >= e.Term {
			return nil, fmt.Errorf("%w: terms not sorted at %q", ErrCorrupt, e.Term)
		}
		if len(e.Postings) == 0 {
			return nil, fmt.Errorf("%w: term %q has no postings", ErrCorrupt, e.Term)
		}
		prevDoc := -1
		for _, p := range e.Postings {
			if p.DocID <= prevDoc || p.DocID >= len(docs) {
				return nil, fmt.Errorf("%w: term %q has bad doc id %d", ErrCorrupt, e.Term, p.DocID)
			}
			prevDoc = p.DocID
			if p.Frequency != len(p.Positions) || p.Frequency == 0 {
				return nil, fmt.Errorf("%w: term %q doc %d frequency mismatch", ErrCorrupt, e.Term, p.DocID)
			}
			prevPos := -1
			for _, pos := range p.Positions {
				if pos <= prevPos || pos >= docs[p.DocID].Length {
					return nil, fmt.Errorf("%w: term %q doc %d has bad position %d", ErrCorrupt, e.Term, p.DocID, pos)
				}
				prevPos = pos
			}
		}
	}
	return build(entries, docs), nil
}

// Postings returns the posting list for term, or nil if the term is absent.
func (ix *InvertedIndex) Postings(term string) PostingList {
	return ix.postings[term]
}

// DocFreq returns the number of documents containing term.
func (ix *InvertedIndex) DocFreq(term string) int {
	return len(ix.postings[term])
}

// Document returns the document with the given dense ID.
func (ix *InvertedIndex) Document(id int) (*Document, bool) {
	if id < 0 || id >= len(ix.docs) {
		return nil, false
	}
	return &ix.docs[id], true
}

// Lookup finds a document by its external identifier.
func (ix *InvertedIndex) Lookup(externalID string) (*Document, bool) {
	id, ok := ix.byExternal[externalID]
	if !ok {
		return nil, false
	}
	return &ix.docs[id], true
}

// Fingerprint is a hash of the index contents. Two indexes with the same
// fingerprint answer every query identically.
func (ix *InvertedIndex) Fingerprint() uint64 { return ix.contentID }

func (ix *InvertedIndex) Stats() Stats {
	return ix.stats
}

func (ix *InvertedIndex) DocCount() int {
	return ix.stats.DocCount
}

func (ix *InvertedIndex) TermCount() int {
	return len(ix.terms)
}

// Terms returns the vocabulary in sorted order.
func (ix *InvertedIndex) Terms() []string {
	return slices.Clone(ix.terms)
}

// TermsWithPrefix reports terms in sorted order that begin with prefix.
func (ix *InvertedIndex) TermsWithPrefix(prefix string, limit int) []string {
	start, _ := slices.BinarySearch(ix.terms, prefix)
	var out []string
	for i := start; i < len(ix.terms) && strings.HasPrefix(ix.terms[i], prefix); i++ {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, ix.terms[i])
	}
	return out
}

// Entries iterates the vocabulary in sorted order with each posting list.
func (ix *InvertedIndex) Entries() iter.Seq2[string, PostingList] {
	return func(yield func(string, PostingList) bool) {
		for _, term := range ix.terms {
			if !yield(term, ix.postings[term]) {
				return
			}
		}
	}
}

// Documents iterates the document table in ID order.
func (ix *InvertedIndex) Documents() iter.Seq[*Document] {
	return func(yield func(*Document) bool) {
		for i := range ix.docs {
			if !yield(&ix.docs[i]) {
				return
			}
		}
	}
}
