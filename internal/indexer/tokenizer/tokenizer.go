// Package tokenizer turns raw text into positional terms. It segments on
// Unicode word boundaries, applies NFKC and lower-casing, strips punctuation,
// drops short tokens and stop-words, and stems what remains. Every kept token
// carries the byte span it came from so excerpts can be cut from the raw text.
package tokenizer

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/words"
	"golang.org/x/text/unicode/norm"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
)

// ErrInvalidText is returned for input that is not valid UTF-8.
var ErrInvalidText = errors.New("text is not valid UTF-8")

// Token is a normalized term, its position in the normalized stream, and
// the byte span [Start, End) of the raw text it was produced from.
type Token struct {
	Term     string
	Position int
	Start    int
	End      int
}

// Analyzer is the contract shared by indexing and query parsing. Both sides
// must use the same Analyzer for terms to line up. Token positions must run
// 0, 1, 2, ... in slice order.
type Analyzer interface {
	Analyze(text string) ([]Token, error)
}

// Tokenizer is the default Analyzer. It is immutable after New and safe for
// concurrent use.
type Tokenizer struct {
	stemmer         Stemmer
	stopWords       map[string]struct{}
	removeStopwords bool
	filterDigits    bool
	minLen          int
}

// New builds a Tokenizer from the analysis settings.
func New(cfg config.AnalysisConfig) (*Tokenizer, error) {
	stemmer, err := NewStemmer(cfg.Stemmer)
	if err != nil {
		return nil, err
	}
	minLen := cfg.MinTokenLength
	if minLen < 1 {
		minLen = 1
	}
	return &Tokenizer{
		stemmer:         stemmer,
		stopWords:       stopWordSet(cfg.Stopwords),
		removeStopwords: cfg.RemoveStopwords,
		filterDigits:    cfg.FilterDigits,
		minLen:          minLen,
	}, nil
}

// WithStemmer returns a copy of t that uses s instead of the configured stemmer.
func (t *Tokenizer) WithStemmer(s Stemmer) *Tokenizer {
	cp := *t
	cp.stemmer = s
	return &cp
}

// Analyze breaks text into Tokens. Dropped tokens do not consume a position,
// so positions are dense and strictly increasing.
func (t *Tokenizer) Analyze(text string) ([]Token, error) {
	if !utf8.ValidString(text) {
		return nil, ErrInvalidText
	}
	tokens := make([]Token, 0, len(text)/8)
	segments := words.FromString(text)
	offset := 0
	pos := 0
	for segments.Next() {
		raw := segments.Value()
		start := offset
		offset += len(raw)

		term := normalize(raw)
		if term == "" || utf8.RuneCountInString(term) < t.minLen {
			continue
		}
		if t.filterDigits && isNumeric(term) {
			continue
		}
		if t.removeStopwords {
			if _, isStop := t.stopWords[term]; isStop {
				continue
			}
		}
		stemmed := t.stemmer.Stem(term)
		if stemmed == "" {
			continue
		}
		tokens = append(tokens, Token{
			Term:     stemmed,
			Position: pos,
			Start:    start,
			End:      offset,
		})
		pos++
	}
	if offset != len(text) {
		return nil, fmt.Errorf("segmenting text: consumed %d of %d bytes", offset, len(text))
	}
	return tokens, nil
}

// Terms is a convenience wrapper returning only the normalized terms.
func (t *Tokenizer) Terms(text string) ([]string, error) {
	tokens, err := t.Analyze(text)
	if err != nil {
		return nil, err
	}
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	return terms, nil
}

// normalize applies NFKC, lower-cases and keeps only letters, digits and
// combining marks. Punctuation-only segments become empty.
func normalize(segment string) string {
	s := strings.ToLower(norm.NFKC.String(segment))
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) {
			return r
		}
		return -1
	}, s)
}

func isNumeric(term string) bool {
	for _, r := range term {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
