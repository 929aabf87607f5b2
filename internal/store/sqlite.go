package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO), registered as "sqlite"
)

const (
	// DriverModernc is the default pure-Go driver.
	DriverModernc = "sqlite"
	// DriverMattn is the CGO driver; FTS5 needs the sqlite_fts5 build tag.
	DriverMattn = "sqlite3"

	defaultBusyTimeout = 5 * time.Second
)

// SQLiteOptions configures the embedded backend.
type SQLiteOptions struct {
	Path        string
	Driver      string
	BusyTimeout time.Duration
}

// SQLite is the embedded backend. It holds a single connection, so writes
// from this process are serialized; WAL plus busy_timeout lets one other
// process read while a batch writes.
type SQLite struct {
	conn
	path   string
	driver string
}

// Verify interface implementation at compile time
var _ Backend = (*SQLite)(nil)

// DriverAvailable reports whether a database/sql driver is registered.
func DriverAvailable(name string) bool {
	return slices.Contains(sql.Drivers(), name)
}

// OpenSQLite opens (creating if needed) the database at opts.Path and
// applies connection pragmas. Call InitSchema before writing.
func OpenSQLite(ctx context.Context, opts SQLiteOptions) (*SQLite, error) {
	if opts.Driver == "" {
		opts.Driver = DriverModernc
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = defaultBusyTimeout
	}
	if !DriverAvailable(opts.Driver) {
		return nil, fmt.Errorf("sqlite driver %q is not compiled into this binary", opts.Driver)
	}

	if dir := filepath.Dir(opts.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open(opts.Driver, opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: the embedded backend has a single writer per process.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		// REPLACE deletes must fire the FTS delete triggers.
		"PRAGMA recursive_triggers = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	slog.Debug("sqlite_opened",
		slog.String("path", opts.Path),
		slog.String("driver", opts.Driver))

	return &SQLite{
		conn:   conn{db: db},
		path:   opts.Path,
		driver: opts.Driver,
	}, nil
}

func (s *SQLite) Dialect() Dialect { return DialectEmbedded }

func (s *SQLite) Describe() string { return fmt.Sprintf("SQLite (%s)", s.path) }

// Path returns the database file.
func (s *SQLite) Path() string { return s.path }

func (s *SQLite) Exec(ctx context.Context, stmt string, args ...any) (sql.Result, error) {
	db, err := s.get()
	if err != nil {
		return nil, err
	}
	return db.ExecContext(ctx, stmt, args...)
}

func (s *SQLite) Query(ctx context.Context, stmt string, args ...any) (*sql.Rows, error) {
	db, err := s.get()
	if err != nil {
		return nil, err
	}
	return db.QueryContext(ctx, stmt, args...)
}

func (s *SQLite) Upsert(ctx context.Context, u Upsert) error {
	stmt, err := u.Render(DialectEmbedded)
	if err != nil {
		return err
	}
	_, err = s.Exec(ctx, stmt, u.Values...)
	return err
}

func (s *SQLite) InitSchema(ctx context.Context) error {
	db, err := s.get()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, embeddedSchema()); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return tx.Commit()
}

// Maintain rebuilds every FTS table from its content table, applies the
// bm25 column weights and merges index segments.
func (s *SQLite) Maintain(ctx context.Context) error {
	db, err := s.get()
	if err != nil {
		return err
	}
	for _, f := range ftsIndexes {
		stmts := []string{
			fmt.Sprintf("INSERT INTO %[1]s(%[1]s) VALUES('rebuild')", f.name()),
			fmt.Sprintf("INSERT INTO %[1]s(%[1]s, rank) VALUES('rank', '%[2]s')", f.name(), f.rank()),
			fmt.Sprintf("INSERT INTO %[1]s(%[1]s) VALUES('optimize')", f.name()),
		}
		for _, stmt := range stmts {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("maintain %s: %w", f.name(), err)
			}
		}
	}
	slog.Debug("sqlite_fts_maintained", slog.Int("tables", len(ftsIndexes)))
	return nil
}

// Close checkpoints the WAL into the main file and closes the database.
func (s *SQLite) Close() error {
	return s.close(func(db *sql.DB) {
		_, _ = db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	})
}
