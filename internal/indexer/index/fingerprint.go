package index

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// fingerprint hashes everything a search result depends on: the vocabulary
// with its postings and the document table. Indexes with equal contents
// get equal fingerprints, whichever process built or loaded them.
func fingerprint(terms []string, postings map[string]PostingList, docs []Document) uint64 {
	d := xxhash.New()
	var buf [binary.MaxVarintLen64]byte
	putInt := func(v int) {
		n := binary.PutVarint(buf[:], int64(v))
		d.Write(buf[:n])
	}
	putString := func(s string) {
		putInt(len(s))
		d.WriteString(s)
	}

	putInt(len(terms))
	for _, t := range terms {
		putString(t)
		pl := postings[t]
		putInt(len(pl))
		for _, p := range pl {
			putInt(p.DocID)
			putInt(len(p.Positions))
			for _, pos := range p.Positions {
				putInt(pos)
			}
		}
	}
	putInt(len(docs))
	for i := range docs {
		doc := &docs[i]
		putString(doc.ExternalID)
		putString(doc.Text)
		putInt(len(doc.Spans))
		for _, sp := range doc.Spans {
			putInt(sp.Start)
			putInt(sp.End)
		}
	}
	return d.Sum64()
}
