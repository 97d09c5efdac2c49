package corpus

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// Format selects how files in a directory corpus are parsed.
type Format int

const (
	FormatAuto Format = iota
	FormatTDT
	FormatHTML
	FormatText
)

func (f Format) String() string {
	switch f {
	case FormatTDT:
		return "tdt"
	case FormatHTML:
		return "html"
	case FormatText:
		return "text"
	default:
		return "auto"
	}
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "tdt", "trec", "sgml":
		return FormatTDT, nil
	case "html", "htm":
		return FormatHTML, nil
	case "text", "txt":
		return FormatText, nil
	default:
		return FormatAuto, fmt.Errorf("%w: unknown corpus format %q", apperrors.ErrConfig, s)
	}
}

// Options controls directory loading.
type Options struct {
	Format Format
	// Workers bounds the number of files read concurrently.
	Workers int
	// MaxDocumentSize skips documents whose text is larger, in bytes. Zero
	// means no limit.
	MaxDocumentSize int
	// Context cancels loading; nil means background.
	Context context.Context
}

const filesPerWorker = 4

// Dir streams the documents under path, which may be a directory (walked
// recursively, hidden entries skipped) or a single file. Files are read
// concurrently but documents are yielded in sorted path order, and in file
// order within a file. A file that cannot be read or decoded ends the stream
// with an error wrapping ErrIO. When two documents share an ID, the first one
// in path order wins.
func Dir(path string, opts Options) indexer.DocumentStream {
	return func(yield func(indexer.RawDocument, error) bool) {
		ctx := opts.Context
		if ctx == nil {
			ctx = context.Background()
		}
		workers := max(opts.Workers, 1)
		log := slog.Default().With("component", "corpus")

		root, files, err := listFiles(path)
		if err != nil {
			yield(indexer.RawDocument{}, err)
			return
		}
		log.Info("loading corpus", "path", path, "files", len(files), "format", opts.Format, "workers", workers)

		seen := make(map[string]struct{})
		var yielded, skipped int
		window := workers * filesPerWorker
		for start := 0; start < len(files); start += window {
			chunk := files[start:min(start+window, len(files))]
			loaded, err := loadChunk(ctx, root, chunk, opts.Format, workers)
			if err != nil {
				yield(indexer.RawDocument{}, err)
				return
			}
			for _, docs := range loaded {
				for _, doc := range docs {
					if _, dup := seen[doc.ExternalID]; dup {
						log.Warn("duplicate document id skipped", "id", doc.ExternalID)
						skipped++
						continue
					}
					if opts.MaxDocumentSize > 0 && len(doc.Text) > opts.MaxDocumentSize {
						log.Warn("oversized document skipped", "id", doc.ExternalID, "bytes", len(doc.Text))
						skipped++
						continue
					}
					seen[doc.ExternalID] = struct{}{}
					yielded++
					if !yield(doc, nil) {
						return
					}
				}
			}
		}
		log.Info("corpus loaded", "path", path, "documents", yielded, "skipped", skipped)
	}
}

// listFiles returns the base directory IDs are made relative to and the
// sorted list of regular files to read.
func listFiles(path string) (string, []string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, fmt.Errorf("%w: opening corpus %s: %w", apperrors.ErrIO, path, err)
	}
	if !info.IsDir() {
		return filepath.Dir(path), []string{path}, nil
	}
	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != path && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return "", nil, fmt.Errorf("%w: walking corpus %s: %w", apperrors.ErrIO, path, err)
	}
	slices.Sort(files)
	return path, files, nil
}

func loadChunk(ctx context.Context, root string, files []string, format Format, workers int) ([][]indexer.RawDocument, error) {
	out := make([][]indexer.RawDocument, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs, err := loadFile(root, file, format)
			if err != nil {
				return err
			}
			out[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func loadFile(root, file string, format Format) ([]indexer.RawDocument, error) {
	data, err := readFile(file)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", apperrors.ErrIO, file, err)
	}
	rel, err := filepath.Rel(root, file)
	if err != nil {
		rel = filepath.Base(file)
	}
	rel = filepath.ToSlash(rel)
	name := strings.TrimSuffix(strings.ToLower(file), ".gz")

	if format == FormatAuto {
		format = detectFormat(name, data)
	}
	switch format {
	case FormatTDT:
		return parseTDT(data), nil
	case FormatHTML:
		text, err := htmlText(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: parsing html %s: %w", apperrors.ErrIO, file, err)
		}
		return single(rel, text), nil
	default:
		return single(rel, collapseSpace(string(data))), nil
	}
}

func readFile(file string) ([]byte, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if !strings.HasSuffix(strings.ToLower(file), ".gz") {
		return io.ReadAll(f)
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func detectFormat(name string, data []byte) Format {
	switch filepath.Ext(name) {
	case ".html", ".htm", ".xhtml":
		return FormatHTML
	}
	if bytes.Contains(data, []byte("<DOC>")) {
		return FormatTDT
	}
	return FormatText
}

func single(id, text string) []indexer.RawDocument {
	if text == "" {
		return nil
	}
	return []indexer.RawDocument{{ExternalID: id, Text: text}}
}
