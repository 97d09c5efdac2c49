package tokenizer

import (
	"fmt"
	"strings"

	"github.com/kljensen/snowball/english"

	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// Stemmer reduces a normalized word to its stem. Implementations must be
// deterministic and safe for concurrent use.
type Stemmer interface {
	Stem(word string) string
}

// StemmerFunc adapts a plain function to Stemmer.
type StemmerFunc func(string) string

func (f StemmerFunc) Stem(word string) string { return f(word) }

// NewStemmer returns the stemmer registered under name: "none", "suffix"
// (built in, always available) or "snowball" (Porter2 English).
func NewStemmer(name string) (Stemmer, error) {
	switch name {
	case "", "suffix":
		return StemmerFunc(suffixStem), nil
	case "none":
		return StemmerFunc(func(w string) string { return w }), nil
	case "snowball":
		return StemmerFunc(snowballStem), nil
	default:
		return nil, fmt.Errorf("%w: unknown stemmer %q", apperrors.ErrConfig, name)
	}
}

func snowballStem(word string) string {
	return english.Stem(word, false)
}

var suffixRules = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// suffixStem applies the first matching suffix rule whose result keeps at
// least minLen bytes.
func suffixStem(word string) string {
	for _, rule := range suffixRules {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}
