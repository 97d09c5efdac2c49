package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

type stubSource struct {
	mu   sync.Mutex
	docs []indexer.RawDocument
	err  error
}

func (s *stubSource) Documents(context.Context) indexer.DocumentStream {
	s.mu.Lock()
	docs, err := s.docs, s.err
	s.mu.Unlock()
	if err != nil {
		return func(yield func(indexer.RawDocument, error) bool) { yield(indexer.RawDocument{}, err) }
	}
	return corpus.Slice(docs)
}

func (s *stubSource) Describe() string { return "stub" }
func (s *stubSource) Close() error     { return nil }

func (s *stubSource) set(docs []indexer.RawDocument, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs, s.err = docs, err
}

var news = []indexer.RawDocument{
	{ExternalID: "doc1", Text: "Hurricane George hits Florida"},
	{ExternalID: "doc2", Text: "Hurricane warnings issued for Florida"},
	{ExternalID: "doc3", Text: "Bombing in New York"},
}

func newReloader(t *testing.T, src corpus.Source, opts ...Option) (*Reloader, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.Indexer.IndexPath = filepath.Join(t.TempDir(), "index.csx")
	analyzer, err := tokenizer.New(cfg.Analysis)
	require.NoError(t, err)
	r, err := NewReloader(*cfg, analyzer, indexer.NewPublisher(nil), src, nil, opts...)
	require.NoError(t, err)
	return r, cfg
}

func TestRebuildSavesAndPublishes(t *testing.T) {
	src := &stubSource{docs: news}
	agg := analytics.NewAggregator()
	r, cfg := newReloader(t, src, WithCollector(analytics.NewCollector(agg, 10)))

	snap, err := r.Rebuild(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Equal(t, 3, snap.Index.DocCount())
	assert.Same(t, snap, r.Publisher().Current())

	_, err = os.Stat(cfg.Indexer.IndexPath)
	require.NoError(t, err)

	stats := agg.Stats()
	assert.Equal(t, int64(1), stats.IndexBuilds)
	require.NotNil(t, stats.LastBuild)
	assert.Equal(t, 3, stats.LastBuild.Documents)
}

func TestFailedRebuildKeepsLiveIndex(t *testing.T) {
	src := &stubSource{docs: news}
	r, _ := newReloader(t, src)
	live, err := r.Rebuild(context.Background(), "first")
	require.NoError(t, err)

	src.set(nil, errors.New("disk gone"))
	_, err = r.Rebuild(context.Background(), "second")
	require.ErrorIs(t, err, apperrors.ErrIndexBuild)
	assert.Same(t, live, r.Publisher().Current())

	_, lastErr := r.LastAttempt()
	require.Error(t, lastErr)
}

func TestLoadOrBuildPrefersSavedIndex(t *testing.T) {
	src := &stubSource{docs: news}
	r, cfg := newReloader(t, src)

	snap, err := r.LoadOrBuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stub", snap.Source)

	src.set(nil, errors.New("must not be read"))
	analyzer, err := tokenizer.New(cfg.Analysis)
	require.NoError(t, err)
	again, err := NewReloader(*cfg, analyzer, indexer.NewPublisher(nil), src, nil)
	require.NoError(t, err)
	snap, err = again.LoadOrBuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file:"+cfg.Indexer.IndexPath, snap.Source)
	assert.Equal(t, 3, snap.Index.DocCount())

	_, lastErr := again.LastAttempt()
	assert.NoError(t, lastErr)
}

func TestConcurrentRebuildsAreSerialized(t *testing.T) {
	r, _ := newReloader(t, &stubSource{docs: news})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Rebuild(context.Background(), "concurrent")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(4), r.Publisher().Current().Generation)
}

func TestNewReloaderValidates(t *testing.T) {
	cfg := config.Default()
	analyzer, err := tokenizer.New(cfg.Analysis)
	require.NoError(t, err)
	_, err = NewReloader(*cfg, analyzer, nil, &stubSource{}, nil)
	require.ErrorIs(t, err, apperrors.ErrConfig)
}

// blockingSource holds Documents open until release is closed.
type blockingSource struct {
	started chan struct{}
	release chan struct{}
}

func (s *blockingSource) Documents(ctx context.Context) indexer.DocumentStream {
	return func(yield func(indexer.RawDocument, error) bool) {
		close(s.started)
		select {
		case <-s.release:
		case <-ctx.Done():
			yield(indexer.RawDocument{}, ctx.Err())
			return
		}
		for _, d := range news {
			if !yield(d, nil) {
				return
			}
		}
	}
}

func (s *blockingSource) Describe() string { return "blocking" }
func (s *blockingSource) Close() error     { return nil }

func TestLastAttemptDoesNotWaitForRunningRebuild(t *testing.T) {
	src := &blockingSource{started: make(chan struct{}), release: make(chan struct{})}
	r, _ := newReloader(t, src)

	done := make(chan error, 1)
	go func() {
		_, err := r.Rebuild(context.Background(), "test")
		done <- err
	}()
	<-src.started

	status := make(chan error, 1)
	go func() {
		_, err := r.LastAttempt()
		status <- err
	}()
	select {
	case err := <-status:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("LastAttempt blocked while a rebuild was running")
	}

	close(src.release)
	require.NoError(t, <-done)
	at, err := r.LastAttempt()
	assert.NoError(t, err)
	assert.False(t, at.IsZero())
}
