package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
)

func streamOf(docs []RawDocument) DocumentStream {
	return func(yield func(RawDocument, error) bool) {
		for _, d := range docs {
			if !yield(d, nil) {
				return
			}
		}
	}
}

func testAnalyzer(t testing.TB) tokenizer.Analyzer {
	t.Helper()
	tok, err := tokenizer.New(config.Default().Analysis)
	require.NoError(t, err)
	return tok
}

func generatedCorpus(n int) []RawDocument {
	words := []string{"hurricane", "florida", "storm", "warning", "new", "york", "bombing", "george", "coast", "rain"}
	docs := make([]RawDocument, n)
	for i := range docs {
		text := ""
		for j := 0; j < 5+i%7; j++ {
			text += words[(i*3+j*7)%len(words)] + " "
		}
		docs[i] = RawDocument{ExternalID: fmt.Sprintf("doc-%04d", (i*37)%n), Text: text}
	}
	return docs
}

func builderWith(t *testing.T, workers, batch int) *Builder {
	t.Helper()
	cfg := config.Default().Indexer
	cfg.Workers = workers
	cfg.BatchSize = batch
	b, err := NewBuilder(cfg, testAnalyzer(t))
	require.NoError(t, err)
	return b
}

func TestSequentialAndParallelBuildsAreIdentical(t *testing.T) {
	docs := generatedCorpus(101)

	sequential, err := builderWith(t, 1, 1000).Build(context.Background(), streamOf(docs))
	require.NoError(t, err)
	parallel, err := builderWith(t, 8, 7).Build(context.Background(), streamOf(docs))
	require.NoError(t, err)

	assert.Equal(t, 101, sequential.DocCount())
	assert.Equal(t, sequential, parallel)
}

func TestBuildEmptyCorpus(t *testing.T) {
	idx, err := builderWith(t, 4, 10).Build(context.Background(), streamOf(nil))
	require.NoError(t, err)
	assert.Equal(t, 0, idx.DocCount())
	assert.Equal(t, 0, idx.TermCount())
}

func TestBuildAbortsOnStreamError(t *testing.T) {
	boom := errors.New("disk on fire")
	stream := func(yield func(RawDocument, error) bool) {
		if !yield(RawDocument{ExternalID: "a", Text: "fine"}, nil) {
			return
		}
		yield(RawDocument{}, boom)
	}
	idx, err := builderWith(t, 2, 1).Build(context.Background(), stream)
	require.ErrorIs(t, err, apperrors.ErrIndexBuild)
	require.ErrorIs(t, err, boom)
	assert.Nil(t, idx)
}

func TestBuildAbortsOnInvalidDocument(t *testing.T) {
	tests := map[string][]RawDocument{
		"duplicate id": {{ExternalID: "a", Text: "one"}, {ExternalID: "a", Text: "two"}},
		"missing id":   {{ExternalID: "", Text: "one"}},
		"invalid utf8": {{ExternalID: "a", Text: "bad \xff"}},
	}
	for name, docs := range tests {
		t.Run(name, func(t *testing.T) {
			idx, err := builderWith(t, 2, 1).Build(context.Background(), streamOf(docs))
			require.ErrorIs(t, err, apperrors.ErrIndexBuild)
			assert.Nil(t, idx)
		})
	}
}

type failingAnalyzer struct{}

func (f *failingAnalyzer) Analyze(text string) ([]tokenizer.Token, error) {
	if text == "explode" {
		return nil, errors.New("analyzer failure")
	}
	return nil, nil
}

func TestBuildAbortsOnAnalyzerError(t *testing.T) {
	cfg := config.Default().Indexer
	cfg.BatchSize = 2
	b, err := NewBuilder(cfg, &failingAnalyzer{})
	require.NoError(t, err)
	docs := generatedCorpus(10)
	docs[6].Text = "explode"
	_, err = b.Build(context.Background(), streamOf(docs))
	require.ErrorIs(t, err, apperrors.ErrIndexBuild)
}

type sparseAnalyzer struct{}

func (sparseAnalyzer) Analyze(text string) ([]tokenizer.Token, error) {
	return []tokenizer.Token{
		{Term: "storm", Position: 0, Start: 0, End: len(text)},
		{Term: "surge", Position: 2, Start: 0, End: len(text)},
	}, nil
}

func TestBuildAbortsOnSparseTokenPositions(t *testing.T) {
	b, err := NewBuilder(config.Default().Indexer, sparseAnalyzer{})
	require.NoError(t, err)
	_, err = b.Build(context.Background(), streamOf(generatedCorpus(3)))
	require.ErrorIs(t, err, apperrors.ErrIndexBuild)
	require.ErrorIs(t, err, index.ErrTokenPosition)
}

func TestBuildHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	docs := generatedCorpus(50)
	stream := func(yield func(RawDocument, error) bool) {
		for i, d := range docs {
			if i == 3 {
				cancel()
			}
			if !yield(d, nil) {
				return
			}
		}
	}
	idx, err := builderWith(t, 2, 4).Build(ctx, stream)
	require.ErrorIs(t, err, apperrors.ErrIndexBuild)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, idx)
}

func TestNewBuilderRejectsBadConfig(t *testing.T) {
	cfg := config.Default().Indexer
	cfg.Workers = 0
	_, err := NewBuilder(cfg, testAnalyzer(t))
	require.ErrorIs(t, err, apperrors.ErrConfig)

	_, err = NewBuilder(config.Default().Indexer, nil)
	require.ErrorIs(t, err, apperrors.ErrConfig)
}

func TestBuildRecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	cfg := config.Default().Indexer
	cfg.BatchSize = 3
	b, err := NewBuilder(cfg, testAnalyzer(t), WithMetrics(m))
	require.NoError(t, err)

	_, err = b.Build(context.Background(), streamOf(generatedCorpus(10)))
	require.NoError(t, err)
	assert.Equal(t, 10.0, testutil.ToFloat64(m.DocsIndexedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("success")))
}

func TestSaveAndLoadIndex(t *testing.T) {
	idx, err := BuildIndex(context.Background(), config.Default().Indexer, testAnalyzer(t), streamOf(generatedCorpus(20)))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "index.csx")
	require.NoError(t, SaveIndex(idx, path, true))
	loaded, err := LoadIndex(path)
	require.NoError(t, err)
	assert.Equal(t, idx, loaded)

	_, err = LoadIndex(filepath.Join(t.TempDir(), "missing.csx"))
	require.ErrorIs(t, err, apperrors.ErrIO)
}

func TestPublisherSwapsAtomically(t *testing.T) {
	p := NewPublisher(nil)
	first := p.Current()
	assert.Equal(t, uint64(0), first.Generation)
	assert.Equal(t, 0, first.Index.DocCount())

	small, err := builderWith(t, 1, 10).Build(context.Background(), streamOf(generatedCorpus(5)))
	require.NoError(t, err)
	large, err := builderWith(t, 1, 10).Build(context.Background(), streamOf(generatedCorpus(50)))
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := p.Current()
				n := snap.Index.DocCount()
				if n != 0 && n != 5 && n != 50 {
					t.Errorf("observed torn index with %d docs", n)
					return
				}
			}
		}()
	}
	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			p.Publish(small, "test")
		} else {
			p.Publish(large, "test")
		}
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, uint64(100), p.Current().Generation)
	assert.Same(t, large, p.Index())
}

func TestPublishKeepsOldSnapshotForInflightReaders(t *testing.T) {
	p := NewPublisher(nil)
	held := p.Current()
	p.Publish(index.Empty(), "rebuild")
	assert.Equal(t, uint64(0), held.Generation)
	assert.Equal(t, uint64(1), p.Current().Generation)
}

func BenchmarkBuild(b *testing.B) {
	docs := generatedCorpus(2000)
	cfg := config.Default().Indexer
	tok, err := tokenizer.New(config.Default().Analysis)
	require.NoError(b, err)
	builder, err := NewBuilder(cfg, tok)
	require.NoError(b, err)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := builder.Build(context.Background(), streamOf(docs)); err != nil {
			b.Fatal(err)
		}
	}
}
