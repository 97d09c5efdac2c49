package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

func analyzer(t *testing.T) tokenizer.Analyzer {
	t.Helper()
	tok, err := tokenizer.New(config.Default().Analysis)
	require.NoError(t, err)
	return tok
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []Clause
	}{
		{
			name:  "terms",
			query: "hurricane florida",
			want: []Clause{
				{Kind: TermClause, Terms: []string{"hurricane"}},
				{Kind: TermClause, Terms: []string{"florida"}},
			},
		},
		{
			name:  "phrase",
			query: `"new york"`,
			want:  []Clause{{Kind: PhraseClause, Terms: []string{"new", "york"}}},
		},
		{
			name:  "mixed",
			query: `"New York" bombing`,
			want: []Clause{
				{Kind: PhraseClause, Terms: []string{"new", "york"}},
				{Kind: TermClause, Terms: []string{"bomb"}},
			},
		},
		{
			name:  "phrase without surrounding spaces",
			query: `storm"new york"warnings`,
			want: []Clause{
				{Kind: TermClause, Terms: []string{"storm"}},
				{Kind: PhraseClause, Terms: []string{"new", "york"}},
				{Kind: TermClause, Terms: []string{"warning"}},
			},
		},
		{
			name:  "single term phrase",
			query: `"florida"`,
			want:  []Clause{{Kind: PhraseClause, Terms: []string{"florida"}}},
		},
		{
			name:  "duplicate terms kept",
			query: "florida Florida FLORIDA",
			want: []Clause{
				{Kind: TermClause, Terms: []string{"florida"}},
				{Kind: TermClause, Terms: []string{"florida"}},
				{Kind: TermClause, Terms: []string{"florida"}},
			},
		},
		{
			name:  "stopwords only",
			query: "the of and",
			want:  nil,
		},
		{
			name:  "empty phrase dropped",
			query: `"" storm`,
			want:  []Clause{{Kind: TermClause, Terms: []string{"storm"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(tt.query, analyzer(t))
			require.NoError(t, err)
			assert.Equal(t, tt.query, q.Raw)
			assert.Equal(t, tt.want, q.Clauses)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, query := range []string{"", "   \t\n", `"new york`, `a "b" "c`} {
		t.Run(query, func(t *testing.T) {
			q, err := Parse(query, analyzer(t))
			require.ErrorIs(t, err, apperrors.ErrQueryParse)
			assert.Nil(t, q)
		})
	}
}

func TestQueryAccessors(t *testing.T) {
	q, err := Parse(`"new york" bombing york`, analyzer(t))
	require.NoError(t, err)
	assert.Len(t, q.TermClauses(), 2)
	assert.Len(t, q.PhraseClauses(), 1)
	assert.Equal(t, []string{"new", "york", "bomb"}, q.Terms())
	assert.Equal(t, `"new york" bomb york`, q.String())
}
