package store

import (
	"context"
	"log/slog"

	"github.com/continuity-tools/artifact-index/internal/config"
	"github.com/continuity-tools/artifact-index/internal/errors"
)

// Open connects to the backend named by choice and initializes its schema.
//
// An auto-selected server that cannot be reached falls back to the embedded
// backend; onFallback, if non-nil, receives the connection error. A server
// selected explicitly is never substituted.
func Open(ctx context.Context, choice config.BackendChoice, onFallback func(error)) (Backend, error) {
	if choice.Server() {
		b, err := OpenPostgres(ctx, PostgresOptions{
			URL:            choice.URL,
			MaxConns:       choice.MaxConns,
			LegacyHandoffs: choice.LegacyHandoffs,
			Retry:          errors.DefaultRetryConfig(),
		})
		switch {
		case err == nil:
			return initialized(ctx, b)
		case choice.Forced || errors.GetCode(err) != errors.ErrCodeBackendUnavailable:
			return nil, err
		}

		slog.Warn("backend_fallback",
			slog.String("from", string(DialectServer)),
			slog.String("to", string(DialectEmbedded)),
			slog.String("error", err.Error()))
		if onFallback != nil {
			onFallback(err)
		}
		choice = choice.Embedded()
	}

	b, err := OpenSQLite(ctx, SQLiteOptions{
		Path:        choice.SQLitePath,
		Driver:      choice.Driver,
		BusyTimeout: choice.BusyTimeout,
	})
	if err != nil {
		code := errors.ErrCodeBackendUnavailable
		if !DriverAvailable(choice.Driver) {
			code = errors.ErrCodeDriverMissing
		}
		return nil, errors.New(code, "failed to open embedded database", err).
			WithDetail("path", choice.SQLitePath)
	}
	return initialized(ctx, b)
}

func initialized(ctx context.Context, b Backend) (Backend, error) {
	if err := b.InitSchema(ctx); err != nil {
		_ = b.Close()
		return nil, errors.New(errors.ErrCodeSchemaFailed, "failed to initialize schema", err).
			WithDetail("backend", b.Describe())
	}
	return b, nil
}
