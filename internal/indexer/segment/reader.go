package segment

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// Stat reads and checks only the header of the index file at path.
func Stat(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, fmt.Errorf("%w: opening index file: %w", apperrors.ErrIO, err)
	}
	defer f.Close()
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return Header{}, fmt.Errorf("%w: reading header: %w", apperrors.ErrIO, err)
	}
	header := unmarshalHeader(headerBytes)
	if err := checkHeader(header); err != nil {
		return Header{}, err
	}
	return header, nil
}

func checkHeader(h Header) error {
	if h.Magic != MagicBytes {
		return fmt.Errorf("%w: invalid index file: bad magic bytes %x", apperrors.ErrIO, h.Magic)
	}
	if h.Version != FormatVersion {
		return fmt.Errorf("%w: unsupported index format version %d", apperrors.ErrIO, h.Version)
	}
	if h.PostSize < 0 || h.DictSize < 0 || h.DocsSize < 0 || h.StatsSize < 0 {
		return fmt.Errorf("%w: invalid section sizes", apperrors.ErrIO)
	}
	return nil
}

// Read loads the index file at path. Any missing, truncated or corrupt file
// yields an error wrapping ErrIO and no index.
func Read(path string) (*index.InvertedIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading index file: %w", apperrors.ErrIO, err)
	}
	if len(data) < HeaderSize+FooterSize {
		return nil, fmt.Errorf("%w: index file too short (%d bytes)", apperrors.ErrIO, len(data))
	}
	header := unmarshalHeader(data[:HeaderSize])
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	body := data[:len(data)-FooterSize]
	footer := data[len(data)-FooterSize:]
	if binary.LittleEndian.Uint32(footer[8:12]) != MagicBytes {
		return nil, fmt.Errorf("%w: invalid index file: bad footer", apperrors.ErrIO)
	}
	if want, got := binary.LittleEndian.Uint64(footer[0:8]), xxhash.Sum64(body); want != got {
		return nil, fmt.Errorf("%w: checksum mismatch: want %x, got %x", apperrors.ErrIO, want, got)
	}
	expected := int64(HeaderSize) + header.PostSize + header.DictSize + header.DocsSize + header.StatsSize
	if expected != int64(len(body)) {
		return nil, fmt.Errorf("%w: section sizes %d do not match file body %d", apperrors.ErrIO, expected, len(body))
	}

	sizes := [4]int64{header.PostSize, header.DictSize, header.DocsSize, header.StatsSize}
	var sections [4][]byte
	off := int64(HeaderSize)
	var dec *zstd.Decoder
	if header.Compressed() {
		dec, err = zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: creating zstd decoder: %w", apperrors.ErrIO, err)
		}
		defer dec.Close()
	}
	for i, size := range sizes {
		raw := body[off : off+size]
		off += size
		if dec != nil && len(raw) > 0 {
			raw, err = dec.DecodeAll(raw, nil)
			if err != nil {
				return nil, fmt.Errorf("%w: decompressing section %d: %w", apperrors.ErrIO, i, err)
			}
		}
		sections[i] = raw
	}

	idx, err := decodeSections(header, sections)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding index: %w", apperrors.ErrIO, err)
	}
	return idx, nil
}

func decodeSections(header Header, sections [4][]byte) (*index.InvertedIndex, error) {
	postings := sections[0]

	docs := make([]index.Document, 0, header.DocCount)
	dd := &decoder{buf: sections[2]}
	for !dd.done() {
		doc, err := decodeDocument(dd, len(docs))
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", len(docs), err)
		}
		docs = append(docs, doc)
	}
	if len(docs) != int(header.DocCount) {
		return nil, fmt.Errorf("header declares %d documents, found %d", header.DocCount, len(docs))
	}

	entries := make([]index.TermEntry, 0, header.TermCount)
	dict := &decoder{buf: sections[1]}
	for !dict.done() {
		term, err := dict.string()
		if err != nil {
			return nil, fmt.Errorf("dictionary: %w", err)
		}
		var fields [3]int
		for i := range fields {
			if fields[i], err = dict.int(); err != nil {
				return nil, fmt.Errorf("dictionary entry %q: %w", term, err)
			}
		}
		start, length, df := fields[0], fields[1], fields[2]
		if start+length > len(postings) {
			return nil, fmt.Errorf("postings for %q out of range", term)
		}
		list, err := decodePostings(&decoder{buf: postings[start : start+length]}, df)
		if err != nil {
			return nil, fmt.Errorf("postings for %q: %w", term, err)
		}
		entries = append(entries, index.TermEntry{Term: term, Postings: list})
	}
	if len(entries) != int(header.TermCount) {
		return nil, fmt.Errorf("header declares %d terms, found %d", header.TermCount, len(entries))
	}

	stats := &decoder{buf: sections[3]}
	n, err := stats.int()
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	total, err := stats.uvarint()
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	idx, err := index.New(entries, docs)
	if err != nil {
		return nil, err
	}
	if s := idx.Stats(); s.DocCount != n || s.TotalTokens != int64(total) {
		return nil, fmt.Errorf("stats mismatch: stored %d docs/%d tokens, computed %d/%d", n, total, s.DocCount, s.TotalTokens)
	}
	return idx, nil
}

func decodeDocument(d *decoder, id int) (index.Document, error) {
	externalID, err := d.string()
	if err != nil {
		return index.Document{}, err
	}
	length, err := d.int()
	if err != nil {
		return index.Document{}, err
	}
	if length > len(d.buf)-d.off {
		return index.Document{}, fmt.Errorf("%w: %d spans", errTruncated, length)
	}
	spans := make([]index.Span, length)
	prevEnd := 0
	for i := range spans {
		gap, err := d.int()
		if err != nil {
			return index.Document{}, err
		}
		width, err := d.int()
		if err != nil {
			return index.Document{}, err
		}
		spans[i].Start = prevEnd + gap
		spans[i].End = spans[i].Start + width
		prevEnd = spans[i].End
	}
	text, err := d.string()
	if err != nil {
		return index.Document{}, err
	}
	return index.Document{
		ID:         id,
		ExternalID: externalID,
		Length:     length,
		Spans:      spans,
		Text:       text,
	}, nil
}

func decodePostings(d *decoder, df int) (index.PostingList, error) {
	if df > len(d.buf) {
		return nil, fmt.Errorf("%w: %d postings", errTruncated, df)
	}
	list := make(index.PostingList, df)
	prevDoc := 0
	for i := range list {
		delta, err := d.int()
		if err != nil {
			return nil, err
		}
		freq, err := d.int()
		if err != nil {
			return nil, err
		}
		if freq > len(d.buf)-d.off {
			return nil, fmt.Errorf("%w: %d positions", errTruncated, freq)
		}
		positions := make([]int, freq)
		prevPos := 0
		for j := range positions {
			pd, err := d.int()
			if err != nil {
				return nil, err
			}
			positions[j] = prevPos + pd
			prevPos = positions[j]
		}
		prevDoc += delta
		list[i] = index.Posting{DocID: prevDoc, Frequency: freq, Positions: positions}
	}
	if !d.done() {
		return nil, fmt.Errorf("%d trailing bytes", len(d.buf)-d.off)
	}
	return list, nil
}
