// Package watcher reports created and modified artifact documents under a
// project root, so they can be indexed as soon as they are written.
//
// fsnotify is the primary mechanism; when it cannot be initialized the
// watcher falls back to periodic polling. Events are debounced per path so
// an editor's burst of writes yields one event.
package watcher

import (
	"fmt"
	"time"

	"github.com/gobwas/glob"
)

// Operation is the kind of change observed for a path.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one debounced change. Path is absolute.
type FileEvent struct {
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures a Watcher.
type Options struct {
	// DebounceWindow is how long a path must stay quiet before its event
	// is emitted.
	DebounceWindow time.Duration
	// PollInterval is used only by the polling fallback.
	PollInterval time.Duration
	// BufferSize is the capacity of the batch channel.
	BufferSize int
	// ExcludeDirs are glob patterns matched against directory base names.
	ExcludeDirs []string
	// Filter, if set, drops file events for which it returns false.
	Filter func(path string) bool
	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow: 500 * time.Millisecond,
		PollInterval:   2 * time.Second,
		BufferSize:     64,
		ExcludeDirs:    []string{".git", "node_modules", ".venv", "__pycache__"},
	}
}

// WithDefaults fills zero values from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = d.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.BufferSize <= 0 {
		o.BufferSize = d.BufferSize
	}
	return o
}

// compileExcludes validates ExcludeDirs.
func (o Options) compileExcludes() ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(o.ExcludeDirs))
	for _, p := range o.ExcludeDirs {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern '%s': %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// Validate reports invalid options.
func (o Options) Validate() error {
	_, err := o.compileExcludes()
	return err
}

// matcher decides which paths a watcher reports.
type matcher struct {
	exclude []glob.Glob
	filter  func(string) bool
}

func (m matcher) skipDir(name string) bool {
	for _, g := range m.exclude {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func (m matcher) wantFile(path string) bool {
	return m.filter == nil || m.filter(path)
}
