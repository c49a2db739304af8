package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sithafal/sithafal/internal/quarantine"
)

// reloadDelay coalesces the burst of events an editor save produces.
const reloadDelay = 100 * time.Millisecond

// Watcher keeps the rows of a YAML fixture cached and reloads them when the
// file changes on disk. Already open quarantine pages are not touched; the
// next page load picks up the new rows.
type Watcher struct {
	file    *YAMLFile
	fsw     *fsnotify.Watcher
	logger  *slog.Logger
	onLoad  func(n int)
	mu      sync.RWMutex
	rows    []quarantine.Row
	lastErr error
	done    chan struct{}
	wg      sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// Watch loads file once and starts watching its directory. onLoad, if not
// nil, is called with the row count after every successful reload.
func Watch(ctx context.Context, file *YAMLFile, logger *slog.Logger, onLoad func(n int)) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rows, err := file.Load(ctx)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	// Watch the directory: editors often replace the file instead of
	// writing it in place.
	if err := fsw.Add(filepath.Dir(file.Path())); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", file.Path(), err)
	}

	w := &Watcher{
		file:   file,
		fsw:    fsw,
		logger: logger,
		onLoad: onLoad,
		rows:   rows,
		done:   make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) Name() string { return w.file.Name() }

// Load returns the cached rows.
func (w *Watcher) Load(ctx context.Context) ([]quarantine.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]quarantine.Row(nil), w.rows...), nil
}

// Err returns the error of the last failed reload, if any. The cache keeps
// the last good rows.
func (w *Watcher) Err() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastErr
}

// Close stops watching. It is safe to call more than once, also
// concurrently; every call returns the result of the first.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.closeErr = w.fsw.Close()
		w.wg.Wait()
	})
	return w.closeErr
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	target := filepath.Clean(w.file.Path())
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
			} else {
				timer.Reset(reloadDelay)
			}
			fire = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("row fixture watcher error", "error", err)
		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := w.file.Load(ctx)
	w.mu.Lock()
	if err != nil {
		w.lastErr = err
		w.mu.Unlock()
		w.logger.Warn("row fixture reload failed, keeping previous rows", "path", w.file.Path(), "error", err)
		return
	}
	w.rows = rows
	w.lastErr = nil
	w.mu.Unlock()

	w.logger.Info("row fixture reloaded", "path", w.file.Path(), "rows", len(rows))
	if w.onLoad != nil {
		w.onLoad(len(rows))
	}
}
