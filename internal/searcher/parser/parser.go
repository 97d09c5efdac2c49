// Package parser turns a free-text query into term and phrase clauses.
// Double-quoted runs become phrase clauses; everything else becomes one term
// clause per analyzed token. Query text goes through the same Analyzer as
// the corpus, so clause terms are directly comparable with index terms.
package parser

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

type ClauseKind int

const (
	TermClause ClauseKind = iota
	PhraseClause
)

func (k ClauseKind) String() string {
	switch k {
	case TermClause:
		return "term"
	case PhraseClause:
		return "phrase"
	default:
		return fmt.Sprintf("ClauseKind(%d)", int(k))
	}
}

// Clause is a single term (len(Terms) == 1) or an ordered phrase.
type Clause struct {
	Kind  ClauseKind
	Terms []string
}

type Query struct {
	Raw     string
	Clauses []Clause
}

// Parse splits query into clauses. An empty or whitespace-only query, or one
// with an unbalanced double quote, returns an error wrapping ErrQueryParse.
// A query whose words all analyze away (stop-words, punctuation) is valid
// and has no clauses.
func Parse(query string, analyzer tokenizer.Analyzer) (*Query, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", apperrors.ErrQueryParse)
	}
	if n := strings.Count(query, `"`); n%2 != 0 {
		return nil, fmt.Errorf("%w: unbalanced quote in %q", apperrors.ErrQueryParse, query)
	}

	q := &Query{Raw: query}
	inPhrase := false
	for i, part := range strings.Split(query, `"`) {
		if i > 0 {
			inPhrase = !inPhrase
		}
		tokens, err := analyzer.Analyze(part)
		if err != nil {
			return nil, fmt.Errorf("%w: analyzing %q: %w", apperrors.ErrQueryParse, part, err)
		}
		if len(tokens) == 0 {
			continue
		}
		if inPhrase {
			terms := make([]string, len(tokens))
			for j, tok := range tokens {
				terms[j] = tok.Term
			}
			q.Clauses = append(q.Clauses, Clause{Kind: PhraseClause, Terms: terms})
			continue
		}
		for _, tok := range tokens {
			q.Clauses = append(q.Clauses, Clause{Kind: TermClause, Terms: []string{tok.Term}})
		}
	}
	return q, nil
}

func (q *Query) TermClauses() []Clause {
	return q.filter(TermClause)
}

func (q *Query) PhraseClauses() []Clause {
	return q.filter(PhraseClause)
}

func (q *Query) filter(kind ClauseKind) []Clause {
	var out []Clause
	for _, c := range q.Clauses {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Terms returns every distinct term across all clauses in first-seen order.
func (q *Query) Terms() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range q.Clauses {
		for _, t := range c.Terms {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				out = append(out, t)
			}
		}
	}
	return out
}

// String renders the normalized query, e.g. `hurricane florida "new york"`.
// Two queries with the same String resolve identically.
func (q *Query) String() string {
	parts := make([]string, 0, len(q.Clauses))
	for _, c := range q.Clauses {
		if c.Kind == PhraseClause {
			parts = append(parts, `"`+strings.Join(c.Terms, " ")+`"`)
		} else {
			parts = append(parts, c.Terms[0])
		}
	}
	return strings.Join(parts, " ")
}
