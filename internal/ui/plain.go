package ui

import (
	"context"
	"sync"

	"github.com/continuity-tools/artifact-index/internal/errors"
	"github.com/continuity-tools/artifact-index/internal/output"
)

// PlainRenderer prints line-oriented output for pipes, hooks and CI.
// Per-document progress is not printed; each kind gets one summary line.
type PlainRenderer struct {
	mu     sync.Mutex
	out    *output.Writer
	errOut *output.Writer
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	errW := cfg.ErrOutput
	if errW == nil {
		errW = cfg.Output
	}
	if cfg.NoColor {
		return &PlainRenderer{
			out:    output.NewWithColor(cfg.Output, false),
			errOut: output.NewWithColor(errW, false),
		}
	}
	return &PlainRenderer{out: output.New(cfg.Output), errOut: output.New(errW)}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(ProgressEvent) {}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errOut.Warningf("Skipped %s", errors.Diagnostic(event.Err))
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range stats.Kinds {
		if k.Missing {
			r.out.Warningf("%s directory not found: %s", k.Title, k.Dir)
			continue
		}
		r.out.Successf("Indexed %d %s", k.Indexed, k.Noun)
	}
	if stats.Err == nil {
		r.out.Success("Done!")
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

var _ Renderer = (*PlainRenderer)(nil)
