package index

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/continuity-tools/artifact-index/internal/artifact"
	"github.com/continuity-tools/artifact-index/internal/errors"
	"github.com/continuity-tools/artifact-index/internal/watcher"
)

// EventSource is the part of a watcher the Coordinator consumes.
type EventSource interface {
	Events() <-chan []watcher.FileEvent
	Errors() <-chan error
}

// CoordinatorStats counts what the coordinator has done since it started.
type CoordinatorStats struct {
	Indexed int
	Skipped int
	Failed  int
}

// Coordinator keeps the index current by feeding watcher events through
// Indexer.IndexFile. Deleted documents keep their records.
type Coordinator struct {
	indexer *Indexer
	mu      sync.Mutex
	stats   CoordinatorStats
}

// NewCoordinator creates a coordinator for ix.
func NewCoordinator(ix *Indexer) *Coordinator {
	return &Coordinator{indexer: ix}
}

// Filter reports whether the watcher should report path at all.
func (c *Coordinator) Filter(path string) bool {
	return c.indexer.Classify(path) != artifact.KindUnknown
}

// Stats returns a snapshot of the counters.
func (c *Coordinator) Stats() CoordinatorStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Run consumes src until ctx is done or its channels close.
func (c *Coordinator) Run(ctx context.Context, src EventSource) error {
	errs := src.Errors()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-src.Events():
			if !ok {
				return nil
			}
			c.HandleEvents(ctx, batch)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("watcher_error", slog.String("error", err.Error()))
		}
	}
}

// HandleEvents indexes every created or modified document in events.
// A failing document is logged and does not stop the batch.
func (c *Coordinator) HandleEvents(ctx context.Context, events []watcher.FileEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ev := range events {
		if ctx.Err() != nil {
			return
		}
		switch ev.Operation {
		case watcher.OpCreate, watcher.OpModify:
		default:
			slog.Debug("watch_event_ignored",
				slog.String("path", ev.Path),
				slog.String("operation", ev.Operation.String()))
			continue
		}

		info, err := os.Lstat(ev.Path)
		if err != nil {
			// Gone again before the batch was flushed.
			c.stats.Skipped++
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 || !info.Mode().IsRegular() {
			slog.Debug("skipping non-regular file", slog.String("path", ev.Path))
			c.stats.Skipped++
			continue
		}
		if info.Size() > c.indexer.maxFileSize {
			slog.Warn("skipping oversized file",
				slog.String("path", ev.Path),
				slog.Int64("size", info.Size()),
				slog.Int64("max", c.indexer.maxFileSize))
			c.stats.Skipped++
			continue
		}

		if _, err := c.indexer.IndexFile(ctx, ev.Path); err != nil {
			if errors.GetCode(err) == errors.ErrCodeUnknownKind {
				c.stats.Skipped++
			} else {
				c.stats.Failed++
			}
			continue
		}
		c.stats.Indexed++
	}
}
