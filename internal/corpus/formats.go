package corpus

import (
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
)

var (
	tdtDoc      = regexp.MustCompile(`(?s)<DOC>(.*?)</DOC>`)
	tdtDocNo    = regexp.MustCompile(`(?s)<DOCNO>\s*(.*?)\s*</DOCNO>`)
	tdtDocNoAtt = regexp.MustCompile(`<DOCNO\s*=\s*"([^"]+)"`)
	tdtText     = regexp.MustCompile(`(?s)<TEXT>(.*?)</TEXT>`)
	sgmlTag     = regexp.MustCompile(`<[^>]+>`)
)

// parseTDT extracts every <DOC> element. The ID comes from <DOCNO>id</DOCNO>
// or <DOCNO="id">; the body is the <TEXT> element when present and the rest
// of the element otherwise. Tags become spaces and whitespace is collapsed.
// Elements without an ID or with an empty body are dropped.
func parseTDT(data []byte) []indexer.RawDocument {
	var docs []indexer.RawDocument
	for _, m := range tdtDoc.FindAllSubmatch(data, -1) {
		body := m[1]
		var id string
		if loc := tdtDocNo.FindSubmatchIndex(body); loc != nil {
			id = strings.TrimSpace(string(body[loc[2]:loc[3]]))
			body = body[loc[1]:]
		} else if att := tdtDocNoAtt.FindSubmatch(body); att != nil {
			id = strings.TrimSpace(string(att[1]))
		}
		if id == "" {
			continue
		}
		if t := tdtText.FindSubmatch(body); t != nil {
			body = t[1]
		}
		text := collapseSpace(sgmlTag.ReplaceAllString(string(body), " "))
		if text == "" {
			continue
		}
		docs = append(docs, indexer.RawDocument{ExternalID: id, Text: text})
	}
	return docs
}

// htmlText returns the visible text of an HTML document, skipping script and
// style elements.
func htmlText(r io.Reader) (string, error) {
	tokenizer := html.NewTokenizer(r)
	var sb strings.Builder
	inScript := false
	inStyle := false

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if tokenizer.Err() == io.EOF {
				return collapseSpace(sb.String()), nil
			}
			return "", tokenizer.Err()

		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script":
				inScript = true
			case "style":
				inStyle = true
			}

		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script":
				inScript = false
			case "style":
				inStyle = false
			}

		case html.TextToken:
			if !inScript && !inStyle {
				sb.Write(tokenizer.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
