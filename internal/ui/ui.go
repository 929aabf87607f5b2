// Package ui renders batch indexing progress: a bubbletea view on
// interactive terminals and plain summary lines everywhere else.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/continuity-tools/artifact-index/internal/output"
)

// ProgressEvent is a progress update for one kind of document.
type ProgressEvent struct {
	// Label names the kind being indexed, e.g. "Handoffs".
	Label       string
	Current     int
	Total       int
	CurrentFile string
}

// ErrorEvent is a document that was skipped.
type ErrorEvent struct {
	File string
	Err  error
}

// KindStats summarizes one kind of a finished run.
type KindStats struct {
	// Title is the capitalized kind, used for missing directories.
	Title string
	// Noun is the plural noun used in the "Indexed N ..." line.
	Noun    string
	Dir     string
	Missing bool
	Found   int
	Indexed int
	Skipped int
}

// CompletionStats contains final indexing statistics.
type CompletionStats struct {
	Kinds    []KindStats
	Duration time.Duration
	// Err is set when the run stopped early.
	Err error
}

// Skipped is the total number of skipped documents.
func (s CompletionStats) Skipped() int {
	n := 0
	for _, k := range s.Kinds {
		n += k.Skipped
	}
	return n
}

// Renderer displays batch progress.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress updates progress display.
	UpdateProgress(event ProgressEvent)

	// AddError reports a skipped document.
	AddError(event ErrorEvent)

	// Complete shows the run summary.
	Complete(stats CompletionStats)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output io.Writer
	// ErrOutput receives skip diagnostics in plain mode. Defaults to Output.
	ErrOutput  io.Writer
	ForcePlain bool
	NoColor    bool
	ProjectDir string
	// OnInterrupt is called when the user quits the interactive view.
	OnInterrupt func()
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithErrOutput sets where plain mode writes diagnostics.
func WithErrOutput(w io.Writer) ConfigOption {
	return func(c *Config) {
		c.ErrOutput = w
	}
}

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithProjectDir sets the project directory shown in the header.
func WithProjectDir(dir string) ConfigOption {
	return func(c *Config) {
		c.ProjectDir = dir
	}
}

// WithInterrupt sets the callback run when the user presses q or ctrl+c.
func WithInterrupt(fn func()) ConfigOption {
	return func(c *Config) {
		c.OnInterrupt = fn
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(out io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: out}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ErrOutput == nil {
		cfg.ErrOutput = out
	}
	return cfg
}

// NewRenderer returns the TUI renderer for interactive terminals and the
// plain renderer for pipes, CI, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !output.IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
