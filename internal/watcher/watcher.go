package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/npesaras/wolfie-rag/internal/model"
)

type PathIngester interface {
	IngestPath(ctx context.Context, path string) (*model.IngestResult, error)
	Supports(filename string) bool
}

// Watcher ingests files dropped into a directory. Bursts of create/write
// events for one path collapse into a single ingestion after the debounce
// delay.
type Watcher struct {
	dir      string
	debounce time.Duration
	target   PathIngester

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

func New(dir string, debounce time.Duration, target PathIngester) *Watcher {
	if debounce <= 0 {
		debounce = 1500 * time.Millisecond
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		target:   target,
		pending:  make(map[string]*time.Timer),
	}
}

// Run blocks until ctx is done. Ingestions already started are waited for.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create watch dir: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("dir", w.dir))
	logger.Info("watching source dir", zap.Duration("debounce", w.debounce))
	defer w.drain()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.accept(event) {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// accept keeps create and write events on regular, visible, supported files.
func (w *Watcher) accept(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return false
	}
	if !w.target.Supports(name) {
		return false
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return true
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok && t.Stop() {
		t.Reset(w.debounce)
		return
	}
	w.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == timer {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		w.ingest(ctx, path)
	})
	w.pending[path] = timer
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	logger := logutil.GetLogger(ctx).With(zap.String("path", path))
	res, err := w.target.IngestPath(ctx, path)
	if err != nil {
		logger.Error("watched file ingestion failed", zap.Error(err))
		return
	}
	logger.Info("watched file ingested",
		zap.String("doc_id", res.DocID),
		zap.Int("chunks", res.Chunks),
		zap.Int("degraded", res.DegradedChunks),
	)
}

// drain cancels timers that have not fired and waits for running ingestions.
func (w *Watcher) drain() {
	w.mu.Lock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
