package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/continuity-tools/artifact-index/internal/errors"
)

// BackendFlags carries the command-line overrides for backend selection.
type BackendFlags struct {
	// DBPath is --db. Setting it forces the embedded backend.
	DBPath string
	// Backend is --backend: auto, embedded, server or empty.
	Backend string
}

// BackendChoice is the resolved destination. It is computed once per
// command and handed to store.Open.
type BackendChoice struct {
	// Kind is BackendEmbedded or BackendServer.
	Kind string
	// Forced is false when Kind came from auto-detection. Only an
	// auto-detected server may fall back to the embedded backend.
	Forced bool

	SQLitePath  string
	Driver      string
	BusyTimeout time.Duration

	URL            string
	LegacyHandoffs bool
	MaxConns       int
}

// Server reports whether the choice targets the server backend.
func (b BackendChoice) Server() bool { return b.Kind == BackendServer }

// Embedded returns the embedded-backend variant of b, used for fallback.
func (b BackendChoice) Embedded() BackendChoice {
	b.Kind = BackendEmbedded
	return b
}

// ResolveBackend applies, in order: --db forces embedded; --backend; the
// database.backend setting; and for auto, server exactly when a URL is
// configured.
func (c *Config) ResolveBackend(flags BackendFlags) (BackendChoice, error) {
	timeout, err := c.BusyTimeout()
	if err != nil {
		return BackendChoice{}, errors.New(errors.ErrCodeConfigInvalid, "invalid database.busy_timeout", err)
	}

	maxConns := c.Database.MaxConns
	if maxConns == 0 {
		maxConns = max(c.Index.Workers, 2)
	}

	choice := BackendChoice{
		SQLitePath:     c.Resolve(c.Database.Path),
		Driver:         c.Database.Driver,
		BusyTimeout:    timeout,
		URL:            c.Database.URL,
		LegacyHandoffs: c.Database.LegacyHandoffsSchema,
		MaxConns:       maxConns,
	}

	if flags.DBPath != "" {
		choice.SQLitePath = c.Resolve(flags.DBPath)
		choice.Kind = BackendEmbedded
		choice.Forced = true
		return choice, nil
	}

	mode := strings.ToLower(flags.Backend)
	if mode == "" {
		mode = c.Database.Backend
	}

	switch mode {
	case BackendEmbedded:
		choice.Kind = BackendEmbedded
		choice.Forced = true
	case BackendServer:
		if choice.URL == "" {
			return BackendChoice{}, errors.New(errors.ErrCodeConfigInvalid, "server backend selected but no database URL is set", nil).
				WithSuggestion(fmt.Sprintf("set %s or database.url", EnvDatabaseURL))
		}
		choice.Kind = BackendServer
		choice.Forced = true
	case BackendAuto, "":
		choice.Kind = BackendEmbedded
		if choice.URL != "" {
			choice.Kind = BackendServer
		}
	default:
		return BackendChoice{}, errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("backend must be 'auto', 'embedded' or 'server', got %q", mode), nil)
	}

	return choice, nil
}
