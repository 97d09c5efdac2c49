package corpus

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

const tdtFile = `<DOC>
<DOCNO> APW19981001.0001 </DOCNO>
<DOCTYPE> NEWS STORY </DOCTYPE>
<TEXT>
Hurricane   George hits
<P>Florida</P>
</TEXT>
</DOC>
<DOC>
<DOCNO>APW19981001.0002</DOCNO>
Hurricane warnings issued for Florida
</DOC>
<DOC>
<DOCNO>APW19981001.0003</DOCNO>
<TEXT>   </TEXT>
</DOC>
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeGzip(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func ids(docs []indexer.RawDocument) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ExternalID
	}
	return out
}

func TestParseTDT(t *testing.T) {
	docs := parseTDT([]byte(tdtFile))
	require.Len(t, docs, 2)
	assert.Equal(t, indexer.RawDocument{ExternalID: "APW19981001.0001", Text: "Hurricane George hits Florida"}, docs[0])
	assert.Equal(t, indexer.RawDocument{ExternalID: "APW19981001.0002", Text: "Hurricane warnings issued for Florida"}, docs[1])
}

func TestParseTDTAttributeDocNo(t *testing.T) {
	docs := parseTDT([]byte(`<DOC><DOCNO = "NYT19981001.0007"><TEXT>Bombing in New York</TEXT></DOC>`))
	require.Len(t, docs, 1)
	assert.Equal(t, "NYT19981001.0007", docs[0].ExternalID)
	assert.Equal(t, "Bombing in New York", docs[0].Text)
}

func TestHTMLTextSkipsScriptAndStyle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "page.html"), `<html><head><title>Storm</title><style>p{color:red}</style></head>
<body><script>var x = "hidden";</script><p>Hurricane <b>George</b></p><p>hits Florida</p></body></html>`)
	docs, err := Collect(Dir(dir, Options{}))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "page.html", docs[0].ExternalID)
	assert.Equal(t, "Storm Hurricane George hits Florida", docs[0].Text)
}

func TestDirMixedFormatsInPathOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b", "news.sgm"), tdtFile)
	writeGzip(t, filepath.Join(dir, "a", "wire.sgm.gz"), `<DOC><DOCNO>NYT.0003</DOCNO><TEXT>Bombing in New York</TEXT></DOC>`)
	writeFile(t, filepath.Join(dir, "c", "notes.txt"), "plain\n\ttext  file\n")
	writeFile(t, filepath.Join(dir, "c", "empty.txt"), "   \n")
	writeFile(t, filepath.Join(dir, ".hidden", "x.txt"), "never read")
	writeFile(t, filepath.Join(dir, ".DS_Store"), "junk")

	for _, workers := range []int{1, 3, 16} {
		docs, err := Collect(Dir(dir, Options{Workers: workers}))
		require.NoError(t, err)
		assert.Equal(t, []string{"NYT.0003", "APW19981001.0001", "APW19981001.0002", "c/notes.txt"}, ids(docs), "workers=%d", workers)
		assert.Equal(t, "plain text file", docs[3].Text)
	}
}

func TestDirForcedTextFormat(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "news.sgm"), `<DOC><DOCNO>X</DOCNO>body</DOC>`)
	docs, err := Collect(Dir(dir, Options{Format: FormatText}))
	require.NoError(t, err)
	assert.Equal(t, []string{"news.sgm"}, ids(docs))
}

func TestDirSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "one.sgm")
	writeFile(t, path, tdtFile)
	docs, err := Collect(Dir(path, Options{Format: FormatTDT}))
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestDirSkipsDuplicatesAndOversized(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "1.sgm"), `<DOC><DOCNO>A</DOCNO>first</DOC>`)
	writeFile(t, filepath.Join(dir, "2.sgm"), `<DOC><DOCNO>A</DOCNO>second</DOC><DOC><DOCNO>B</DOCNO>a much longer body text</DOC>`)
	docs, err := Collect(Dir(dir, Options{MaxDocumentSize: 10}))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "first", docs[0].Text)
}

func TestDirMissingPath(t *testing.T) {
	_, err := Collect(Dir(filepath.Join(t.TempDir(), "nope"), Options{}))
	require.ErrorIs(t, err, apperrors.ErrIO)
}

func TestDirCorruptGzip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.gz"), "not gzip at all")
	_, err := Collect(Dir(dir, Options{}))
	require.ErrorIs(t, err, apperrors.ErrIO)
}

func TestDirStopsWhenConsumerStops(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "news.sgm"), tdtFile)
	n := 0
	for _, err := range Dir(dir, Options{}) {
		require.NoError(t, err)
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestDirCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "news.sgm"), tdtFile)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Collect(Dir(dir, Options{Context: ctx}))
	require.ErrorIs(t, err, context.Canceled)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatAuto, "TDT": FormatTDT, "htm": FormatHTML, "txt": FormatText} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("pdf")
	require.ErrorIs(t, err, apperrors.ErrConfig)
}

func sqliteCorpus(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE documents (id TEXT PRIMARY KEY, body TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO documents (id, body) VALUES
		('doc1', 'Hurricane George hits Florida'),
		('doc2', 'Hurricane warnings issued for Florida'),
		('doc3', 'Bombing in New York'),
		('doc4', NULL)`)
	require.NoError(t, err)
	return path
}

func TestSQLiteSource(t *testing.T) {
	cfg := config.Default()
	cfg.Corpus.Source = "sql"
	cfg.Corpus.SQLDriver = "sqlite"
	cfg.Corpus.SQLDSN = sqliteCorpus(t)

	src, err := Open(context.Background(), *cfg)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, "sql:sqlite", src.Describe())

	docs, err := Collect(src.Documents(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, []string{"doc1", "doc2", "doc3"}, ids(docs))
	assert.Equal(t, "Bombing in New York", docs[2].Text)
}

func TestSQLBadQuery(t *testing.T) {
	db, err := sql.Open("sqlite", sqliteCorpus(t))
	require.NoError(t, err)
	src := NewSQLSource(db, "sqlite", "SELECT nope FROM missing")
	defer src.Close()
	_, err = Collect(src.Documents(context.Background()))
	require.ErrorIs(t, err, apperrors.ErrIO)
}

func TestOpenRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Corpus.Source = "sql"
	cfg.Corpus.SQLDriver = "oracle"
	_, err := Open(context.Background(), *cfg)
	require.ErrorIs(t, err, apperrors.ErrConfig)

	cfg.Corpus.SQLDriver = "sqlite"
	cfg.Corpus.SQLDSN = ""
	_, err = Open(context.Background(), *cfg)
	require.ErrorIs(t, err, apperrors.ErrConfig)

	cfg.Corpus.Source = "ftp"
	_, err = Open(context.Background(), *cfg)
	require.ErrorIs(t, err, apperrors.ErrConfig)
}

func TestSliceAndCollect(t *testing.T) {
	docs := []indexer.RawDocument{{ExternalID: "a", Text: "x"}, {ExternalID: "b", Text: "y"}}
	got, err := Collect(Slice(docs))
	require.NoError(t, err)
	assert.Equal(t, docs, got)

	boom := errors.New("boom")
	_, err = Collect(func(yield func(indexer.RawDocument, error) bool) { yield(indexer.RawDocument{}, boom) })
	require.ErrorIs(t, err, boom)
}
