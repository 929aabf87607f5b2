package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/continuity-tools/artifact-index/internal/artifact"
	"github.com/continuity-tools/artifact-index/internal/errors"
)

// SearchOptions filters a search. An empty Kind searches every table.
type SearchOptions struct {
	Query string
	Kind  artifact.Kind
	Limit int
}

// Hit is one search result. Lower Score ranks higher on the embedded
// backend (bm25 is negative); the server backend returns 0 for all hits.
type Hit struct {
	Kind     artifact.Kind
	ID       string
	FilePath string
	Title    string
	Snippet  string
	Score    float64
}

// searchable lists, per content table, the column shown as a hit's title
// and the columns matched on the server backend.
var searchable = map[artifact.Kind]struct {
	title   string
	columns []string
}{
	artifact.KindHandoff:    {"task_summary", []string{"task_summary", "key_decisions", "what_worked", "what_failed", "files_modified"}},
	artifact.KindPlan:       {"title", []string{"title", "overview", "approach", "constraints", "phases"}},
	artifact.KindContinuity: {"goal", []string{"goal", "key_learnings", "key_decisions", "state_now", "state_next"}},
}

var legacyHandoffSearch = struct {
	title   string
	columns []string
}{"goal", []string{"goal", "key_decisions", "what_worked", "what_failed"}}

// SearchKinds is the order kinds are searched in when none is given.
var SearchKinds = []artifact.Kind{artifact.KindHandoff, artifact.KindPlan, artifact.KindContinuity}

// SanitizeFTS quotes each word so user input cannot inject FTS5 syntax.
func SanitizeFTS(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		words[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"`
	}
	return strings.Join(words, " ")
}

// Search runs FTS5 ranked search on the embedded backend and a
// case-insensitive substring scan on the server backend.
func Search(ctx context.Context, b Backend, opts SearchOptions) ([]Hit, error) {
	if strings.TrimSpace(opts.Query) == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "search query is empty", nil)
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	kinds := SearchKinds
	if opts.Kind != artifact.KindUnknown {
		if _, ok := searchable[opts.Kind]; !ok {
			return nil, errors.New(errors.ErrCodeUnknownKind, fmt.Sprintf("unknown kind %q", opts.Kind), nil).
				WithSuggestion("use handoffs, plans or continuity")
		}
		kinds = []artifact.Kind{opts.Kind}
	}

	var hits []Hit
	for _, kind := range kinds {
		var (
			found []Hit
			err   error
		)
		if b.Dialect() == DialectEmbedded {
			found, err = searchFTS(ctx, b, kind, opts)
		} else {
			found, err = searchScan(ctx, b, kind, opts)
		}
		if err != nil {
			return nil, errors.New(errors.ErrCodeSearchFailed, "search failed", err).
				WithDetail("kind", string(kind))
		}
		hits = append(hits, found...)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score < hits[j].Score })
	if len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return hits, nil
}

func searchFTS(ctx context.Context, b Backend, kind artifact.Kind, opts SearchOptions) ([]Hit, error) {
	table := string(kind)
	fts := table + "_fts"
	stmt := fmt.Sprintf(`
		SELECT t.id, t.file_path, COALESCE(t.%[3]s, ''),
		       snippet(%[2]s, -1, '[', ']', '...', 12), %[2]s.rank
		FROM %[2]s
		JOIN %[1]s t ON t.rowid = %[2]s.rowid
		WHERE %[2]s MATCH ?
		ORDER BY %[2]s.rank
		LIMIT ?`, table, fts, searchable[kind].title)

	rows, err := b.Query(ctx, stmt, SanitizeFTS(opts.Query), opts.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		h := Hit{Kind: kind}
		if err := rows.Scan(&h.ID, &h.FilePath, &h.Title, &h.Snippet, &h.Score); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func searchScan(ctx context.Context, b Backend, kind artifact.Kind, opts SearchOptions) ([]Hit, error) {
	spec := searchable[kind]
	if l, ok := b.(interface{ Legacy() bool }); ok && l.Legacy() && kind == artifact.KindHandoff {
		spec = legacyHandoffSearch
	}

	pattern := "%" + strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(opts.Query) + "%"
	conds := make([]string, len(spec.columns))
	args := make([]any, 0, len(spec.columns)+1)
	for i, c := range spec.columns {
		conds[i] = c + " ILIKE ?"
		args = append(args, pattern)
	}
	args = append(args, opts.Limit)

	stmt := fmt.Sprintf(`SELECT id::text, file_path, COALESCE(%s, ''), '' FROM %s WHERE %s ORDER BY file_path LIMIT ?`,
		spec.title, string(kind), strings.Join(conds, " OR "))

	rows, err := b.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		h := Hit{Kind: kind}
		if err := rows.Scan(&h.ID, &h.FilePath, &h.Title, &h.Snippet); err != nil {
			return nil, err
		}
		h.Snippet = artifact.Truncate(h.Title, 120)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
