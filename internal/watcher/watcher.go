// Package watcher turns outside signals into index rebuilds: file changes
// under a directory corpus, and rebuild requests on a Kafka topic.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Trigger asks for a rebuild. Implementations block until it finishes.
type Trigger func(ctx context.Context, reason string) error

// CorpusWatcher coalesces bursts of file events under a root directory into
// a single trigger once the directory has been quiet for the debounce window.
type CorpusWatcher struct {
	root     string
	debounce time.Duration
	trigger  Trigger
	logger   *slog.Logger
}

func NewCorpusWatcher(root string, debounce time.Duration, trigger Trigger) *CorpusWatcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &CorpusWatcher{
		root:     root,
		debounce: debounce,
		trigger:  trigger,
		logger:   slog.Default().With("component", "corpus-watcher", "root", root),
	}
}

// Run watches until ctx is cancelled. New subdirectories are picked up as
// they appear. Hidden files and directories are ignored.
func (w *CorpusWatcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fsw.Close()
	if err := w.addRecursive(fsw, w.root); err != nil {
		return fmt.Errorf("watching %s: %w", w.root, err)
	}
	w.logger.Info("watching corpus", "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	pending := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(fsw, event) {
				continue
			}
			pending++
			timer.Reset(w.debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		case <-timer.C:
			reason := fmt.Sprintf("corpus changed (%d events)", pending)
			pending = 0
			if err := w.trigger(ctx, reason); err != nil {
				w.logger.Error("rebuild after corpus change failed", "error", err)
			}
		}
	}
}

func (w *CorpusWatcher) relevant(fsw *fsnotify.Watcher, event fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	if event.Op == fsnotify.Chmod {
		return false
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(fsw, event.Name); err != nil {
				w.logger.Warn("cannot watch new directory", "path", event.Name, "error", err)
			}
		}
	}
	w.logger.Debug("corpus event", "path", event.Name, "op", event.Op.String())
	return true
}

func (w *CorpusWatcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}
