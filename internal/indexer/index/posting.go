package index

// Posting records one document's occurrences of a term. Positions are
// strictly increasing and Frequency equals len(Positions).
type Posting struct {
	DocID     int
	Frequency int
	Positions []int
}

// PostingList is sorted by DocID with no duplicates; its length is the
// term's document frequency.
type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}

// Span is a half-open byte range [Start, End) into a document's raw text.
type Span struct {
	Start int
	End   int
}

// Document is the per-document record kept by the index. Spans[p] is the raw
// text span of normalized position p, so len(Spans) == Length.
type Document struct {
	ID         int
	ExternalID string
	Length     int
	Spans      []Span
	Text       string
}

// Stats holds corpus-level statistics used by scoring.
type Stats struct {
	DocCount     int
	TotalTokens  int64
	AvgDocLength float64
}

func newStats(docs []Document) Stats {
	var total int64
	for i := range docs {
		total += int64(docs[i].Length)
	}
	s := Stats{DocCount: len(docs), TotalTokens: total}
	if len(docs) > 0 {
		s.AvgDocLength = float64(total) / float64(len(docs))
	}
	return s
}
