// Package executor resolves a parsed query against an inverted index. Term
// clauses are OR-ed into a candidate set and scored; phrase clauses are hard
// positional filters that contribute no weight of their own.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// MatchMode controls how term clauses combine.
type MatchMode int

const (
	// MatchAny ranks every document containing at least one term.
	MatchAny MatchMode = iota
	// MatchAll keeps only documents containing every term.
	MatchAll
)

func ParseMatchMode(s string) (MatchMode, error) {
	switch s {
	case "", "any":
		return MatchAny, nil
	case "all":
		return MatchAll, nil
	default:
		return 0, fmt.Errorf("%w: unknown match mode %q", apperrors.ErrConfig, s)
	}
}

// Hit is one ranked document with the normalized positions it matched.
type Hit struct {
	DocID   int
	Score   float64
	Matches []int
}

type Outcome struct {
	Query     string
	TotalHits int
	Hits      []Hit
	TermStats map[string]int
}

type Executor struct {
	scorer ranker.Scorer
	match  MatchMode
	logger *slog.Logger
}

type Option func(*Executor)

func WithMatchMode(m MatchMode) Option {
	return func(e *Executor) { e.match = m }
}

func New(scorer ranker.Scorer, opts ...Option) *Executor {
	e := &Executor{
		scorer: scorer,
		logger: slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type candidate struct {
	score    float64
	termsHit int
	matches  []int
}

// Execute runs q against idx and returns at most limit hits ranked by score
// descending, ties broken by ascending doc ID. A limit of zero or less
// returns every hit.
func (e *Executor) Execute(ctx context.Context, idx *index.InvertedIndex, q *parser.Query, limit int) (*Outcome, error) {
	out := &Outcome{
		Query:     q.Raw,
		Hits:      []Hit{},
		TermStats: make(map[string]int),
	}
	termClauses := q.TermClauses()
	phraseClauses := q.PhraseClauses()
	if len(termClauses) == 0 && len(phraseClauses) == 0 {
		return out, nil
	}

	stats := idx.Stats()
	corpus := ranker.CorpusStats{DocCount: stats.DocCount, AvgDocLength: stats.AvgDocLength}
	candidates := make(map[int]*candidate)

	// A term repeated across clauses contributes its weight once per clause.
	terms, repeats := distinctTerms(termClauses)
	for _, term := range terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		postings := idx.Postings(term)
		out.TermStats[term] = len(postings)
		for _, p := range postings {
			doc, _ := idx.Document(p.DocID)
			c := candidates[p.DocID]
			if c == nil {
				c = &candidate{}
				candidates[p.DocID] = c
			}
			w := e.scorer.Weight(ranker.TermStats{
				DocFreq:   len(postings),
				TermFreq:  p.Frequency,
				DocLength: doc.Length,
			}, corpus)
			c.score += w * float64(repeats[term])
			c.termsHit++
			c.matches = append(c.matches, p.Positions...)
		}
	}

	for i, clause := range phraseClauses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matches := phraseMatches(idx, clause.Terms)
		out.TermStats[`"`+strings.Join(clause.Terms, " ")+`"`] = len(matches)
		if i == 0 && len(termClauses) == 0 {
			for docID := range matches {
				candidates[docID] = &candidate{}
			}
		}
		for docID, c := range candidates {
			starts, ok := matches[docID]
			if !ok {
				delete(candidates, docID)
				continue
			}
			for _, start := range starts {
				for off := range clause.Terms {
					c.matches = append(c.matches, start+off)
				}
			}
		}
	}

	scored := make([]ranker.ScoredDoc, 0, len(candidates))
	for docID, c := range candidates {
		if e.match == MatchAll && c.termsHit < len(terms) {
			continue
		}
		scored = append(scored, ranker.ScoredDoc{DocID: docID, Score: c.score})
	}
	out.TotalHits = len(scored)

	top := merger.TopN(scored, limit)
	out.Hits = make([]Hit, len(top))
	for i, sd := range top {
		matches := candidates[sd.DocID].matches
		slices.Sort(matches)
		out.Hits[i] = Hit{DocID: sd.DocID, Score: sd.Score, Matches: slices.Compact(matches)}
	}

	e.logger.Debug("query executed",
		"query", q.String(),
		"mode", e.scorer.Mode().String(),
		"term_clauses", len(termClauses),
		"phrase_clauses", len(phraseClauses),
		"candidates", out.TotalHits,
		"results", len(out.Hits),
	)
	return out, nil
}

// distinctTerms lists the terms of term clauses in first-seen order with the
// number of clauses naming each.
func distinctTerms(clauses []parser.Clause) ([]string, map[string]int) {
	repeats := make(map[string]int, len(clauses))
	var terms []string
	for _, c := range clauses {
		term := c.Terms[0]
		if repeats[term] == 0 {
			terms = append(terms, term)
		}
		repeats[term]++
	}
	return terms, repeats
}

// phraseMatches returns, for every document containing terms contiguously and
// in order, the positions where the phrase starts.
func phraseMatches(idx *index.InvertedIndex, terms []string) map[int][]int {
	lists := make([]index.PostingList, len(terms))
	for i, term := range terms {
		lists[i] = idx.Postings(term)
		if len(lists[i]) == 0 {
			return nil
		}
	}

	result := make(map[int][]int)
	cursors := make([]int, len(lists))
	for _, head := range lists[0] {
		postings := make([]*index.Posting, len(lists))
		postings[0] = &head
		inAll := true
		for i := 1; i < len(lists); i++ {
			list := lists[i]
			for cursors[i] < len(list) && list[cursors[i]].DocID < head.DocID {
				cursors[i]++
			}
			if cursors[i] == len(list) {
				return result
			}
			if list[cursors[i]].DocID != head.DocID {
				inAll = false
				break
			}
			postings[i] = &list[cursors[i]]
		}
		if !inAll {
			continue
		}
		var starts []int
		for _, base := range head.Positions {
			ok := true
			for i := 1; i < len(postings); i++ {
				if _, found := slices.BinarySearch(postings[i].Positions, base+i); !found {
					ok = false
					break
				}
			}
			if ok {
				starts = append(starts, base)
			}
		}
		if len(starts) > 0 {
			result[head.DocID] = starts
		}
	}
	return result
}
