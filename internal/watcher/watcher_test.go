package watcher

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
)

type recorder struct {
	mu      sync.Mutex
	reasons []string
	err     error
}

func (r *recorder) trigger(_ context.Context, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reasons)
}

func startWatcher(t *testing.T, root string, rec *recorder) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	w := NewCorpusWatcher(root, 100*time.Millisecond, rec.trigger)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	// Let the watcher register its directories.
	time.Sleep(50 * time.Millisecond)
}

func TestBurstOfChangesTriggersOnce(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	startWatcher(t, root, rec)

	for _, name := range []string{"a.sgm", "b.sgm", "c.sgm"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("<DOC></DOC>"), 0o644))
	}

	assert.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestNewSubdirectoriesAreWatched(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	startWatcher(t, root, rec)

	sub := filepath.Join(root, "1998")
	require.NoError(t, os.Mkdir(sub, 0o755))
	assert.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "news.sgm"), []byte("x"), 0o644))
	assert.Eventually(t, func() bool { return rec.count() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestHiddenFilesAreIgnored(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	startWatcher(t, root, rec)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".swp"), []byte("x"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}

func TestRunFailsForMissingRoot(t *testing.T) {
	w := NewCorpusWatcher(filepath.Join(t.TempDir(), "missing"), 0, (&recorder{}).trigger)
	err := w.Run(context.Background())
	require.Error(t, err)
}

func TestRebuildHandler(t *testing.T) {
	rec := &recorder{}
	h := RebuildHandler(rec.trigger)

	require.NoError(t, h(context.Background(), nil, []byte(`{"reason":"nightly","requested_by":"cron"}`)))
	require.NoError(t, h(context.Background(), nil, []byte(`{}`)))
	require.Error(t, h(context.Background(), nil, []byte(`not json`)))
	assert.Equal(t, []string{"nightly", "kafka"}, rec.reasons)

	rec.err = errors.New("build failed")
	require.NoError(t, h(context.Background(), nil, []byte(`{}`)))
}
