// Package snippet cuts a short excerpt from a document's raw text around the
// positions a query matched and records where those matches fall in it.
package snippet

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
)

const ellipsis = "..."

// Highlight is a byte range [Start, End) of Snippet.Text.
type Highlight struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Snippet is an excerpt covering normalized positions [StartPos, EndPos).
type Snippet struct {
	Text       string      `json:"text"`
	Highlights []Highlight `json:"highlights,omitempty"`
	StartPos   int         `json:"start_pos"`
	EndPos     int         `json:"end_pos"`
}

// Render returns Text with every highlighted range passed through mark.
func (s Snippet) Render(mark func(string) string) string {
	if mark == nil || len(s.Highlights) == 0 {
		return s.Text
	}
	var b strings.Builder
	prev := 0
	for _, h := range s.Highlights {
		if h.Start < prev || h.End > len(s.Text) || h.Start >= h.End {
			continue
		}
		b.WriteString(s.Text[prev:h.Start])
		b.WriteString(mark(s.Text[h.Start:h.End]))
		prev = h.End
	}
	b.WriteString(s.Text[prev:])
	return b.String()
}

type Generator struct {
	window   int
	maxChars int
}

func New(cfg config.SnippetConfig) *Generator {
	window := cfg.WindowSize
	if window < 1 {
		window = 20
	}
	return &Generator{window: window, maxChars: cfg.MaxChars}
}

// Generate builds the excerpt for doc. The window is placed over the densest
// run of matches, the earliest one on ties, and centred on it. With no
// usable matches the leading window is used.
func (g *Generator) Generate(doc *index.Document, matches []int) Snippet {
	if doc == nil {
		return Snippet{}
	}
	if doc.Length == 0 || len(doc.Spans) < doc.Length {
		text, _ := g.truncate(collapse(doc.Text, nil), nil)
		return Snippet{Text: text}
	}

	positions := make([]int, 0, len(matches))
	for _, p := range matches {
		if p >= 0 && p < doc.Length {
			positions = append(positions, p)
		}
	}
	slices.Sort(positions)
	positions = slices.Compact(positions)

	start, end := g.place(positions, doc.Length)
	from, to := doc.Spans[start].Start, doc.Spans[end-1].End
	raw := doc.Text[from:to]

	outAt := make([]int, len(raw)+1)
	body := collapse(raw, outAt)

	var highlights []Highlight
	lo, _ := slices.BinarySearch(positions, start)
	for _, p := range positions[lo:] {
		if p >= end {
			break
		}
		span := doc.Spans[p]
		highlights = append(highlights, Highlight{
			Start: outAt[span.Start-from],
			End:   outAt[span.End-from],
		})
	}

	prefix := ""
	if start > 0 {
		prefix = ellipsis
		for i := range highlights {
			highlights[i].Start += len(prefix)
			highlights[i].End += len(prefix)
		}
	}
	text := prefix + body
	text, cut := g.truncate(text, highlights)
	if cut {
		highlights = keepWithin(highlights, len(text)-len(ellipsis))
	} else if end < doc.Length {
		text += ellipsis
	}
	return Snippet{Text: text, Highlights: highlights, StartPos: start, EndPos: end}
}

// place returns the window [start, end) of normalized positions.
func (g *Generator) place(positions []int, length int) (int, int) {
	if length <= g.window {
		return 0, length
	}
	if len(positions) == 0 {
		return 0, g.window
	}
	bestI, bestJ := 0, 1
	j := 0
	for i := range positions {
		for j < len(positions) && positions[j] < positions[i]+g.window {
			j++
		}
		if j-i > bestJ-bestI {
			bestI, bestJ = i, j
		}
	}
	first, last := positions[bestI], positions[bestJ-1]
	start := first - (g.window-(last-first+1))/2
	start = max(0, min(start, length-g.window))
	return start, start + g.window
}

// truncate shortens s to maxChars bytes at a word boundary and appends an
// ellipsis. It never cuts inside a highlight when one starts before the cut.
func (g *Generator) truncate(s string, highlights []Highlight) (string, bool) {
	if g.maxChars <= 0 || len(s) <= g.maxChars {
		return s, false
	}
	cut := g.maxChars
	for _, h := range highlights {
		if h.Start < cut && h.End > cut {
			cut = h.Start
			break
		}
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if i := strings.LastIndexByte(s[:cut], ' '); i > 0 {
		cut = i
	}
	return strings.TrimRightFunc(s[:cut], unicode.IsSpace) + ellipsis, true
}

func keepWithin(highlights []Highlight, limit int) []Highlight {
	out := highlights[:0]
	for _, h := range highlights {
		if h.End <= limit {
			out = append(out, h)
		}
	}
	return out
}

// collapse trims s and folds whitespace runs into one space. When outAt is
// non-nil, outAt[i] receives the output offset of input byte i.
func collapse(s string, outAt []int) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for i, r := range s {
		if unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			if outAt != nil {
				for k := i; k < i+utf8.RuneLen(r) && k < len(outAt); k++ {
					outAt[k] = b.Len()
				}
			}
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		if outAt != nil {
			n := utf8.RuneLen(r)
			if n < 0 {
				n = 1
			}
			for k := i; k < i+n && k < len(outAt); k++ {
				outAt[k] = b.Len()
			}
		}
		b.WriteRune(r)
	}
	if outAt != nil {
		outAt[len(s)] = b.Len()
	}
	return b.String()
}
