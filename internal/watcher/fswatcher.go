package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a directory tree and emits debounced batches of events
// for files accepted by Options.Filter.
type Watcher struct {
	opts      Options
	match     matcher
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	events    chan []FileEvent
	errors    chan error
	stopCh    chan struct{}
	root      string

	mu      sync.RWMutex
	stopped bool
}

// New creates a Watcher. fsnotify is tried first; if it cannot be created
// (or ForcePolling is set) the watcher polls.
func New(opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()
	excludes, err := opts.compileExcludes()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		opts:      opts,
		match:     matcher{exclude: excludes, filter: opts.Filter},
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.BufferSize),
		errors:    make(chan error, 8),
		stopCh:    make(chan struct{}),
	}
	if !opts.ForcePolling {
		if fsw, err := fsnotify.NewWatcher(); err == nil {
			w.fsw = fsw
		} else {
			slog.Warn("watcher_fsnotify_unavailable", slog.String("error", err.Error()))
		}
	}
	return w, nil
}

// Mode returns "fsnotify" or "polling".
func (w *Watcher) Mode() string {
	if w.fsw != nil {
		return "fsnotify"
	}
	return "polling"
}

// Start watches root until ctx is done or Stop is called. It blocks.
func (w *Watcher) Start(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("watch %s: %w", abs, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", abs)
	}
	w.root = abs

	go w.forward(ctx)

	slog.Info("watcher_started", slog.String("root", abs), slog.String("mode", w.Mode()))
	if w.fsw != nil {
		return w.runFsnotify(ctx)
	}
	return w.runPolling(ctx)
}

func (w *Watcher) runFsnotify(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return fmt.Errorf("add directories to watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	info, statErr := os.Stat(ev.Name)
	if statErr == nil && info.IsDir() {
		if ev.Op&fsnotify.Create != 0 && !w.match.skipDir(filepath.Base(ev.Name)) {
			// Files written into a new directory before it is watched are
			// picked up by walking it once.
			if err := w.addTree(ev.Name); err != nil {
				w.emitError(err)
			}
		}
		return
	}

	var op Operation
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		op = OpDelete
	default:
		return
	}
	if !w.match.wantFile(ev.Name) {
		return
	}
	w.debouncer.Add(FileEvent{Path: ev.Name, Operation: op, Timestamp: time.Now()})
}

// addTree watches dir and every non-excluded directory below it, and
// reports files already present in directories that are new to the watch.
func (w *Watcher) addTree(dir string) error {
	fresh := dir != w.root
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != w.root && w.match.skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return w.fsw.Add(path)
		}
		if fresh && d.Type().IsRegular() && w.match.wantFile(path) {
			w.debouncer.Add(FileEvent{Path: path, Operation: OpCreate, Timestamp: time.Now()})
		}
		return nil
	})
}

func (w *Watcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.emit(batch)
		}
	}
}

func (w *Watcher) emit(batch []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}
	select {
	case w.events <- batch:
	default:
		slog.Warn("watcher_batch_dropped", slog.Int("batch_size", len(batch)))
	}
}

func (w *Watcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// Events returns the channel of debounced batches. It is closed by Stop.
func (w *Watcher) Events() <-chan []FileEvent { return w.events }

// Errors returns non-fatal watcher errors. It is closed by Stop.
func (w *Watcher) Errors() <-chan error { return w.errors }

// Stop releases resources and closes the channels. Safe to call twice.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	if w.fsw != nil {
		_ = w.fsw.Close()
	}
	close(w.events)
	close(w.errors)
	return nil
}
