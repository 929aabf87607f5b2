package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/continuity-tools/artifact-index/internal/artifact"
)

// LogQuery records a search in the queries table. On the embedded backend
// the row is also indexed into queries_fts by trigger.
func LogQuery(ctx context.Context, b Backend, question string, kind artifact.Kind, results int) error {
	u := Upsert{
		Table:       "queries",
		Columns:     QueryColumns,
		ConflictKey: "id",
		Values: []any{
			uuid.NewString(), question, string(kind), string(b.Dialect()),
			int64(results), time.Now().UTC().Format(timeLayout),
		},
	}
	if err := b.Upsert(ctx, u); err != nil {
		return fmt.Errorf("log query: %w", err)
	}
	return nil
}

// Counts returns the row count of each table.
func Counts(ctx context.Context, b Backend) (map[string]int64, error) {
	out := make(map[string]int64, 4)
	for _, table := range []string{"handoffs", "plans", "continuity", "queries"} {
		rows, err := b.Query(ctx, "SELECT COUNT(*) FROM "+table)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		var n int64
		if rows.Next() {
			err = rows.Scan(&n)
		}
		if cerr := rows.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		out[table] = n
	}
	return out, nil
}
