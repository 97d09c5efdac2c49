package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/snippet"
)

// TableSnippetWidth is the rune budget for the snippet column.
const TableSnippetWidth = 60

// RenderResults writes resp as a ranked table.
func RenderResults(w io.Writer, resp *searcher.Response, styles Styles) {
	took := time.Duration(resp.TookMs * float64(time.Millisecond))
	fmt.Fprintf(w, "%s\n", styles.Label.Render(fmt.Sprintf(
		"Found %d results in %.4fs (showing %d)", resp.TotalHits, took.Seconds(), len(resp.Results))))
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No matching documents.")
		return
	}
	fmt.Fprintln(w, styles.Header.Render(fmt.Sprintf("%-5s | %-10s | %-15s | %s", "Rank", "Score", "Doc ID", "Snippet")))
	fmt.Fprintln(w, styles.Separator.Render(strings.Repeat("-", 100)))
	for i, res := range resp.Results {
		text := Clip(res.Snippet, TableSnippetWidth).Render(func(s string) string { return styles.Match.Render(s) })
		fmt.Fprintf(w, "%s | %s | %s | %s\n",
			styles.Rank.Render(fmt.Sprintf("%-5d", i+1)),
			styles.Score.Render(fmt.Sprintf("%-10.4f", res.Score)),
			styles.DocID.Render(fmt.Sprintf("%-15s", res.ExternalID)),
			text,
		)
	}
}

// RenderJSON writes resp as indented JSON.
func RenderJSON(w io.Writer, resp *searcher.Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// Clip shortens s to at most width runes, ending in "..." when cut.
// Highlights that no longer fit are dropped.
func Clip(s snippet.Snippet, width int) snippet.Snippet {
	if width <= 3 || utf8.RuneCountInString(s.Text) <= width {
		return s
	}
	cut := 0
	for n := 0; n < width-3; n++ {
		_, size := utf8.DecodeRuneInString(s.Text[cut:])
		cut += size
	}
	out := snippet.Snippet{Text: s.Text[:cut] + "...", StartPos: s.StartPos, EndPos: s.EndPos}
	for _, h := range s.Highlights {
		if h.End <= cut {
			out.Highlights = append(out.Highlights, h)
		}
	}
	return out
}

// ReportFileName names the batch result file for query: quotes removed,
// spaces replaced by underscores, lower-cased, then a timestamp suffix.
func ReportFileName(query string, at time.Time) string {
	name := strings.ReplaceAll(query, `"`, "")
	name = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
	return fmt.Sprintf("%s_%s.txt", name, at.Format("20060102_150405"))
}

// WriteReport writes the plain-text batch report for one query.
func WriteReport(w io.Writer, query string, resp *searcher.Response, at time.Time) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n", query)
	fmt.Fprintf(&b, "Time: %s\n", at.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Results: %d\n", len(resp.Results))
	b.WriteString(strings.Repeat("-", 80) + "\n\n")
	for i, res := range resp.Results {
		fmt.Fprintf(&b, "[%d] Doc ID: %s\n", i+1, res.ExternalID)
		fmt.Fprintf(&b, "    Score: %.4f\n", res.Score)
		if res.Snippet.Text != "" {
			fmt.Fprintf(&b, "    Snippet: %s\n", res.Snippet.Text)
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
