// Package segment persists an InvertedIndex as a single checksummed file and
// loads it back. Layout:
//
//	header   64 bytes: magic, version, flags, counts, creation time, section sizes
//	postings per term: doc delta, frequency, position deltas (uvarint)
//	dict     per term: term, postings offset, postings length, doc frequency
//	docs     per doc: external id, length, span deltas, raw text
//	stats    doc count, total tokens
//	footer   16 bytes: xxhash64 of everything before it, magic
//
// Sections are optionally zstd-compressed as a whole.
package segment

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gofrs/flock"
	"github.com/klauspost/compress/zstd"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

const (
	MagicBytes    uint32 = 0x43535849
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 16

	FlagZstd uint32 = 1 << 0
)

// Header is the 64-byte header written at the start of every index file.
// Section sizes are on-disk sizes; sections follow the header back to back.
type Header struct {
	Magic     uint32
	Version   uint32
	Flags     uint32
	TermCount uint32
	DocCount  uint32
	CreatedAt int64
	PostSize  int64
	DictSize  int64
	DocsSize  int64
	StatsSize int64
}

func (h Header) Compressed() bool {
	return h.Flags&FlagZstd != 0
}

func (h Header) marshal() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.Flags)
	binary.LittleEndian.PutUint32(b[12:16], h.TermCount)
	binary.LittleEndian.PutUint32(b[16:20], h.DocCount)
	binary.LittleEndian.PutUint64(b[20:28], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(b[28:36], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(b[36:44], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(b[44:52], uint64(h.DocsSize))
	binary.LittleEndian.PutUint64(b[52:60], uint64(h.StatsSize))
	return b
}

func unmarshalHeader(b []byte) Header {
	return Header{
		Magic:     binary.LittleEndian.Uint32(b[0:4]),
		Version:   binary.LittleEndian.Uint32(b[4:8]),
		Flags:     binary.LittleEndian.Uint32(b[8:12]),
		TermCount: binary.LittleEndian.Uint32(b[12:16]),
		DocCount:  binary.LittleEndian.Uint32(b[16:20]),
		CreatedAt: int64(binary.LittleEndian.Uint64(b[20:28])),
		PostSize:  int64(binary.LittleEndian.Uint64(b[28:36])),
		DictSize:  int64(binary.LittleEndian.Uint64(b[36:44])),
		DocsSize:  int64(binary.LittleEndian.Uint64(b[44:52])),
		StatsSize: int64(binary.LittleEndian.Uint64(b[52:60])),
	}
}

// WriteOptions controls how an index file is written.
type WriteOptions struct {
	Compress bool
}

// Write atomically persists idx to path. It holds an exclusive lock on
// path+".lock" for the duration, writes to a .tmp file, syncs, and renames
// on success. Failures wrap ErrIO.
func Write(path string, idx *index.InvertedIndex, opts WriteOptions) (Header, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return Header{}, fmt.Errorf("%w: creating index directory: %w", apperrors.ErrIO, err)
	}
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return Header{}, fmt.Errorf("%w: locking index file: %w", apperrors.ErrIO, err)
	}
	defer lock.Unlock()

	sections, err := encodeSections(idx)
	if err != nil {
		return Header{}, fmt.Errorf("%w: encoding index: %w", apperrors.ErrIO, err)
	}
	header := Header{
		Magic:     MagicBytes,
		Version:   FormatVersion,
		TermCount: uint32(idx.TermCount()),
		DocCount:  uint32(idx.DocCount()),
		CreatedAt: time.Now().Unix(),
	}
	if opts.Compress {
		header.Flags |= FlagZstd
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return Header{}, fmt.Errorf("%w: creating zstd encoder: %w", apperrors.ErrIO, err)
		}
		for i := range sections {
			sections[i] = enc.EncodeAll(sections[i], nil)
		}
		enc.Close()
	}
	header.PostSize = int64(len(sections[0]))
	header.DictSize = int64(len(sections[1]))
	header.DocsSize = int64(len(sections[2]))
	header.StatsSize = int64(len(sections[3]))

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return Header{}, fmt.Errorf("%w: creating temp index file: %w", apperrors.ErrIO, err)
	}
	defer os.Remove(tmpPath)
	defer f.Close()

	digest := xxhash.New()
	headerBytes := header.marshal()
	digest.Write(headerBytes)
	if _, err := f.Write(headerBytes); err != nil {
		return Header{}, fmt.Errorf("%w: writing header: %w", apperrors.ErrIO, err)
	}
	for i, section := range sections {
		digest.Write(section)
		if _, err := f.Write(section); err != nil {
			return Header{}, fmt.Errorf("%w: writing section %d: %w", apperrors.ErrIO, i, err)
		}
	}
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint64(footer[0:8], digest.Sum64())
	binary.LittleEndian.PutUint32(footer[8:12], MagicBytes)
	if _, err := f.Write(footer); err != nil {
		return Header{}, fmt.Errorf("%w: writing footer: %w", apperrors.ErrIO, err)
	}
	if err := f.Sync(); err != nil {
		return Header{}, fmt.Errorf("%w: syncing index file: %w", apperrors.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		return Header{}, fmt.Errorf("%w: closing index file: %w", apperrors.ErrIO, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return Header{}, fmt.Errorf("%w: renaming index file: %w", apperrors.ErrIO, err)
	}
	return header, nil
}

// encodeSections returns the uncompressed postings, dict, docs and stats
// sections in that order.
func encodeSections(idx *index.InvertedIndex) ([4][]byte, error) {
	var postings, dict, docs, stats encoder

	for term, list := range idx.Entries() {
		start := len(postings.buf)
		prevDoc := 0
		for _, p := range list {
			postings.int(p.DocID - prevDoc)
			prevDoc = p.DocID
			postings.int(p.Frequency)
			prevPos := 0
			for _, pos := range p.Positions {
				postings.int(pos - prevPos)
				prevPos = pos
			}
		}
		dict.string(term)
		dict.int(start)
		dict.int(len(postings.buf) - start)
		dict.int(len(list))
	}

	for doc := range idx.Documents() {
		docs.string(doc.ExternalID)
		docs.int(doc.Length)
		prevEnd := 0
		for _, sp := range doc.Spans {
			if sp.Start < prevEnd {
				return [4][]byte{}, fmt.Errorf("document %q has overlapping spans", doc.ExternalID)
			}
			docs.int(sp.Start - prevEnd)
			docs.int(sp.End - sp.Start)
			prevEnd = sp.End
		}
		docs.string(doc.Text)
	}

	s := idx.Stats()
	stats.int(s.DocCount)
	stats.uvarint(uint64(s.TotalTokens))

	return [4][]byte{postings.buf, dict.buf, docs.buf, stats.buf}, nil
}
