package ranker

import (
	"fmt"
	"math"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// Mode selects the scoring function.
type Mode int

const (
	ModeTFIDF Mode = iota
	ModeBM25
)

func (m Mode) String() string {
	switch m {
	case ModeTFIDF:
		return "tfidf"
	case ModeBM25:
		return "bm25"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "tfidf" (or "tf-idf") and "bm25", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tfidf", "tf-idf":
		return ModeTFIDF, nil
	case "bm25":
		return ModeBM25, nil
	default:
		return 0, fmt.Errorf("%w: unknown scoring mode %q", apperrors.ErrConfig, s)
	}
}

// Params are the BM25 tuning constants. TF-IDF ignores them.
type Params struct {
	K1 float64
	B  float64
}

func DefaultParams() Params {
	return Params{K1: 1.5, B: 0.75}
}

// TermStats describes one term in one document.
type TermStats struct {
	DocFreq   int
	TermFreq  int
	DocLength int
}

// CorpusStats describes the whole index.
type CorpusStats struct {
	DocCount     int
	AvgDocLength float64
}

// Scorer computes the non-negative weight of one term in one document. The
// zero value is a TF-IDF scorer.
type Scorer struct {
	mode   Mode
	params Params
}

// New returns a Scorer for mode. Negative k1 or b outside [0,1] is a config
// error.
func New(mode Mode, params Params) (Scorer, error) {
	switch mode {
	case ModeTFIDF, ModeBM25:
	default:
		return Scorer{}, fmt.Errorf("%w: unknown scoring mode %d", apperrors.ErrConfig, int(mode))
	}
	if params.K1 < 0 || math.IsNaN(params.K1) {
		return Scorer{}, fmt.Errorf("%w: k1 must be >= 0, got %v", apperrors.ErrConfig, params.K1)
	}
	if params.B < 0 || params.B > 1 || math.IsNaN(params.B) {
		return Scorer{}, fmt.Errorf("%w: b must be within [0,1], got %v", apperrors.ErrConfig, params.B)
	}
	return Scorer{mode: mode, params: params}, nil
}

func (s Scorer) Mode() Mode { return s.mode }

func (s Scorer) Params() Params { return s.params }

// IDF returns the inverse document frequency used by the scorer's mode, or
// 0 when the term is absent or the corpus is empty.
func (s Scorer) IDF(docFreq, docCount int) float64 {
	if docFreq <= 0 || docCount <= 0 {
		return 0
	}
	n, df := float64(docCount), float64(docFreq)
	switch s.mode {
	case ModeBM25:
		return math.Log((n-df+0.5)/(df+0.5) + 1)
	default:
		return math.Max(0, math.Log(n/df))
	}
}

// Weight scores one term occurrence record against the corpus.
func (s Scorer) Weight(t TermStats, c CorpusStats) float64 {
	if t.TermFreq <= 0 {
		return 0
	}
	idf := s.IDF(t.DocFreq, c.DocCount)
	if idf == 0 {
		return 0
	}
	switch s.mode {
	case ModeBM25:
		return idf * bm25TF(float64(t.TermFreq), float64(t.DocLength), c.AvgDocLength, s.params)
	default:
		return idf * (1 + math.Log(float64(t.TermFreq)))
	}
}

func bm25TF(tf, docLength, avgDocLength float64, p Params) float64 {
	lengthRatio := 1.0
	if avgDocLength > 0 {
		lengthRatio = docLength / avgDocLength
	}
	denominator := tf + p.K1*(1-p.B+p.B*lengthRatio)
	if denominator == 0 {
		return 0
	}
	return (tf * (p.K1 + 1)) / denominator
}
