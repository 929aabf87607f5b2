package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/continuity-tools/artifact-index/internal/errors"
)

const postgresDriver = "pgx"

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// PostgresOptions configures the server backend.
type PostgresOptions struct {
	URL string
	// MaxConns bounds the pool; parallel indexing uses one connection per worker.
	MaxConns int
	// LegacyHandoffs targets a pre-existing handoffs table keyed by UUID
	// with a unique file_path. See LegacyHandoffColumns.
	LegacyHandoffs bool
	Retry          errors.RetryConfig
}

// Postgres is the server backend. Unlike SQLite it accepts concurrent writers.
type Postgres struct {
	conn
	url    string
	legacy bool
}

// Verify interface implementation at compile time
var _ Backend = (*Postgres)(nil)

// OpenPostgres connects and pings the server, retrying transient failures.
// An unreachable server yields an ErrCodeBackendUnavailable error.
func OpenPostgres(ctx context.Context, opts PostgresOptions) (*Postgres, error) {
	if opts.URL == "" {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "server backend selected but no database URL is set", nil).
			WithSuggestion("set CONTINUOUS_CLAUDE_DB_URL or database.url")
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = 4
	}

	openMu.Lock()
	db, err := sqlOpen(postgresDriver, opts.URL)
	openMu.Unlock()
	if err != nil {
		return nil, errors.BackendUnavailable("server", fmt.Errorf("open postgres: %w", err))
	}
	db.SetMaxOpenConns(opts.MaxConns)
	db.SetMaxIdleConns(opts.MaxConns)

	err = errors.Retry(ctx, opts.Retry, func() error {
		if pingErr := db.PingContext(ctx); pingErr != nil {
			slog.Debug("postgres_ping_failed", slog.String("error", pingErr.Error()))
			return errors.BackendUnavailable("server", pingErr)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		if errors.GetCode(err) == "" {
			err = errors.BackendUnavailable("server", err)
		}
		return nil, err
	}

	return &Postgres{
		conn:   conn{db: db},
		url:    opts.URL,
		legacy: opts.LegacyHandoffs,
	}, nil
}

func (p *Postgres) Dialect() Dialect { return DialectServer }

// Describe names the host and database without credentials.
func (p *Postgres) Describe() string {
	return "PostgreSQL (" + RedactURL(p.url) + ")"
}

// RedactURL reduces a connection URL to host/database.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "configured server"
	}
	return u.Host + u.Path
}

func (p *Postgres) Exec(ctx context.Context, stmt string, args ...any) (sql.Result, error) {
	db, err := p.get()
	if err != nil {
		return nil, err
	}
	stmt, args = RewriteForServer(stmt, args, p.legacy)
	return db.ExecContext(ctx, stmt, args...)
}

func (p *Postgres) Query(ctx context.Context, stmt string, args ...any) (*sql.Rows, error) {
	db, err := p.get()
	if err != nil {
		return nil, err
	}
	stmt, args = RewriteForServer(stmt, args, p.legacy)
	return db.QueryContext(ctx, stmt, args...)
}

func (p *Postgres) Upsert(ctx context.Context, u Upsert) error {
	if p.legacy && u.Table == "handoffs" {
		stmt, args := legacyHandoffInsert(u)
		_, err := p.Exec(ctx, stmt, args...)
		return err
	}

	stmt, err := u.Render(DialectServer)
	if err != nil {
		return err
	}
	db, err := p.get()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, stmt, u.Values...)
	return err
}

// InitSchema creates the mirrored tables. No migrations are attempted:
// existing tables are left exactly as they are.
func (p *Postgres) InitSchema(ctx context.Context) error {
	db, err := p.get()
	if err != nil {
		return err
	}
	stmts := serverSchema
	if p.legacy {
		stmts = append([]string{legacyServerHandoffs}, serverSchema[2:]...)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Maintain is a no-op: the server backend has no FTS shadow tables.
func (p *Postgres) Maintain(context.Context) error { return nil }

func (p *Postgres) Close() error { return p.close(nil) }

// Legacy reports whether the legacy handoffs rewrite is active.
func (p *Postgres) Legacy() bool { return p.legacy }
