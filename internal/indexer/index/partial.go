package index

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
)

// ErrDuplicateDocument is returned when two documents share an external ID.
var ErrDuplicateDocument = errors.New("duplicate document id")

// ErrTokenPosition is returned when an analyzer emits positions that are not
// 0, 1, 2, ... in order. Spans are stored by position.
var ErrTokenPosition = errors.New("token positions not dense")

// Partial is a mutable index over a subset of the corpus. Workers each fill
// their own Partial; Merge combines them. DocIDs inside a Partial are local
// and only become final once the Partial is frozen.
type Partial struct {
	docs     []Document
	postings map[string]PostingList
	seen     map[string]struct{}
}

func NewPartial() *Partial {
	return &Partial{
		postings: make(map[string]PostingList),
		seen:     make(map[string]struct{}),
	}
}

// AddDocument appends one analyzed document.
func (p *Partial) AddDocument(externalID, text string, tokens []tokenizer.Token) error {
	if _, dup := p.seen[externalID]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateDocument, externalID)
	}
	for i, token := range tokens {
		if token.Position != i {
			return fmt.Errorf("%w: document %q token %d has position %d", ErrTokenPosition, externalID, i, token.Position)
		}
	}
	p.seen[externalID] = struct{}{}

	docID := len(p.docs)
	termData := make(map[string]*Posting)
	order := make([]string, 0, len(tokens))
	spans := make([]Span, len(tokens))

	for i, token := range tokens {
		spans[i] = Span{Start: token.Start, End: token.End}
		posting, exists := termData[token.Term]
		if !exists {
			posting = &Posting{
				DocID:     docID,
				Positions: make([]int, 0, 4),
			}
			termData[token.Term] = posting
			order = append(order, token.Term)
		}
		posting.Frequency++
		posting.Positions = append(posting.Positions, token.Position)
	}

	for _, term := range order {
		p.postings[term] = append(p.postings[term], *termData[term])
	}
	p.docs = append(p.docs, Document{
		ID:         docID,
		ExternalID: externalID,
		Length:     len(tokens),
		Spans:      spans,
		Text:       text,
	})
	return nil
}

func (p *Partial) DocCount() int {
	return len(p.docs)
}

func (p *Partial) TermCount() int {
	return len(p.postings)
}

// Merge combines partials into a new Partial whose documents are ordered by
// external ID and renumbered densely from zero. The result depends only on
// the set of documents, so Merge is associative and commutative.
func Merge(parts ...*Partial) (*Partial, error) {
	type ref struct {
		part  int
		local int
	}
	var refs []ref
	for pi, part := range parts {
		for li := range part.docs {
			refs = append(refs, ref{part: pi, local: li})
		}
	}
	slices.SortFunc(refs, func(a, b ref) int {
		return strings.Compare(parts[a.part].docs[a.local].ExternalID, parts[b.part].docs[b.local].ExternalID)
	})

	merged := NewPartial()
	merged.docs = make([]Document, len(refs))
	remap := make([][]int, len(parts))
	for pi, part := range parts {
		remap[pi] = make([]int, len(part.docs))
	}
	for global, r := range refs {
		doc := parts[r.part].docs[r.local]
		if _, dup := merged.seen[doc.ExternalID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateDocument, doc.ExternalID)
		}
		merged.seen[doc.ExternalID] = struct{}{}
		doc.ID = global
		merged.docs[global] = doc
		remap[r.part][r.local] = global
	}

	for pi, part := range parts {
		for term, list := range part.postings {
			for _, posting := range list {
				posting.DocID = remap[pi][posting.DocID]
				merged.postings[term] = append(merged.postings[term], posting)
			}
		}
	}
	for term, list := range merged.postings {
		slices.SortFunc(list, func(a, b Posting) int { return a.DocID - b.DocID })
		merged.postings[term] = list
	}
	return merged, nil
}

// Freeze turns the partial into an immutable index. The partial must not be
// used afterwards. Documents are renumbered by external ID, so freezing a
// single partial and freezing a merge of several give the same index.
func (p *Partial) Freeze() (*InvertedIndex, error) {
	normalized, err := Merge(p)
	if err != nil {
		return nil, err
	}
	entries := make([]TermEntry, 0, len(normalized.postings))
	for term, list := range normalized.postings {
		entries = append(entries, TermEntry{Term: term, Postings: list})
	}
	slices.SortFunc(entries, func(a, b TermEntry) int { return strings.Compare(a.Term, b.Term) })
	return build(entries, normalized.docs), nil
}
