// Package store persists artifact records into one of two relational
// backends: an embedded SQLite file with FTS5 search, or a Postgres server.
// Callers see one Backend contract; dialect differences stay in this package.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Dialect names a SQL backend family.
type Dialect string

const (
	DialectEmbedded Dialect = "embedded"
	DialectServer   Dialect = "server"
)

// Backend is the write/query contract shared by both dialects.
//
// Exec and Query accept statements written in the embedded dialect ("?"
// placeholders, INSERT OR REPLACE). The server backend rewrites them; see
// RewriteForServer. Upsert is the preferred write path and needs no
// rewriting.
type Backend interface {
	Dialect() Dialect
	// Describe returns a short human-readable location, e.g. "SQLite (/x/context.db)".
	Describe() string

	Exec(ctx context.Context, stmt string, args ...any) (sql.Result, error)
	Query(ctx context.Context, stmt string, args ...any) (*sql.Rows, error)
	Upsert(ctx context.Context, u Upsert) error

	// InitSchema creates tables and indexes if they do not exist.
	InitSchema(ctx context.Context) error
	// Maintain rebuilds and optimizes search structures after a full pass.
	Maintain(ctx context.Context) error

	Close() error
}

// conn is the *sql.DB plumbing shared by both backends.
type conn struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

func (c *conn) get() (*sql.DB, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, fmt.Errorf("backend is closed")
	}
	return c.db, nil
}

func (c *conn) close(beforeClose func(*sql.DB)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if beforeClose != nil {
		beforeClose(c.db)
	}
	return c.db.Close()
}

// DB exposes the underlying handle for tests and maintenance tooling.
func (c *conn) DB() *sql.DB { return c.db }
