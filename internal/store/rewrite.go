package store

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var insertOrReplacePattern = regexp.MustCompile(`(?is)^\s*INSERT\s+OR\s+REPLACE\s+INTO\s+(\w+)\s*\(([^)]+)\)`)

// RewritePlaceholders converts "?" placeholders to "$1", "$2", ... Question
// marks inside quoted literals and identifiers are left alone.
func RewritePlaceholders(stmt string) string {
	var sb strings.Builder
	sb.Grow(len(stmt) + 8)
	n := 0
	var quote rune
	for _, r := range stmt {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '?':
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// RewriteUpsert turns "INSERT OR REPLACE INTO t (cols) ..." into
// "INSERT INTO t (cols) ... ON CONFLICT (id) DO UPDATE SET c = EXCLUDED.c"
// for every listed column except id. The update list is derived from the
// statement's own column list. Statements of any other shape are returned
// unchanged with ok=false.
func RewriteUpsert(stmt string) (out string, table string, ok bool) {
	m := insertOrReplacePattern.FindStringSubmatchIndex(stmt)
	if m == nil {
		return stmt, "", false
	}
	table = stmt[m[2]:m[3]]
	columns := splitColumns(stmt[m[4]:m[5]])

	updates := make([]string, 0, len(columns))
	for _, c := range columns {
		if c != "id" {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}

	head := "INSERT INTO " + table + " (" + stmt[m[4]:m[5]] + ")"
	body := strings.TrimRight(strings.TrimSpace(stmt[m[1]:]), ";")
	body = strings.TrimSpace(body)

	out = head + " " + body + " ON CONFLICT (id) DO "
	if len(updates) == 0 {
		out += "NOTHING"
	} else {
		out += "UPDATE SET " + strings.Join(updates, ", ")
	}
	return out, table, true
}

func splitColumns(list string) []string {
	parts := strings.Split(list, ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		if c := strings.TrimSpace(p); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

// RewriteForServer adapts an embedded-dialect statement for Postgres.
//
// With legacyHandoffs set, a 15-column handoff insert is replaced wholesale
// by legacyHandoffStatement and its arguments are reordered; see
// LegacyHandoffColumns. Everything else goes through RewriteUpsert and
// RewritePlaceholders.
func RewriteForServer(stmt string, args []any, legacyHandoffs bool) (string, []any) {
	rewritten, table, ok := RewriteUpsert(stmt)
	if ok && legacyHandoffs && table == "handoffs" && len(args) == len(LegacyHandoffColumns) {
		return legacyHandoffStatement, legacyHandoffArgs(args)
	}
	return RewritePlaceholders(rewritten), args
}

// LegacyHandoffColumns is the handoff column order callers bind when writing
// through Exec. Older server deployments keep a differently shaped handoffs
// table (UUID key, unique file_path, "goal" instead of task_summary), and
// the rewrite picks arguments out of this order by position.
//
// Known fragility: legacyHandoffParams indexes into this slice. Reordering
// or inserting columns here without updating legacyHandoffParams silently
// binds the wrong values. TestLegacyHandoffParams pins the pairing.
var LegacyHandoffColumns = []string{
	"id", "session_name", "task_number", "file_path", "task_summary",
	"what_worked", "what_failed", "key_decisions", "files_modified",
	"outcome", "root_span_id", "turn_span_id", "session_id",
	"braintrust_session_id", "created_at",
}

// legacyHandoffParams lists, for $2..$10 of legacyHandoffStatement, the
// position in LegacyHandoffColumns of the value to bind. $1 is a fresh UUID.
var legacyHandoffParams = []int{1, 3, 4, 5, 6, 7, 9, 10, 12}

// legacyHandoffTargets names the server column each legacyHandoffParams
// entry lands in.
var legacyHandoffTargets = []string{
	"session_name", "file_path", "goal", "what_worked", "what_failed",
	"key_decisions", "outcome", "root_span_id", "session_id",
}

const legacyHandoffStatement = `INSERT INTO handoffs
	(id, session_name, file_path, goal, what_worked, what_failed, key_decisions, outcome, root_span_id, session_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (file_path) DO UPDATE SET
		session_name = EXCLUDED.session_name,
		goal = EXCLUDED.goal,
		what_worked = EXCLUDED.what_worked,
		what_failed = EXCLUDED.what_failed,
		key_decisions = EXCLUDED.key_decisions,
		outcome = EXCLUDED.outcome,
		root_span_id = EXCLUDED.root_span_id,
		session_id = EXCLUDED.session_id,
		indexed_at = NOW()`

func legacyHandoffArgs(args []any) []any {
	out := make([]any, 0, len(legacyHandoffParams)+1)
	out = append(out, uuid.NewString())
	for _, pos := range legacyHandoffParams {
		out = append(out, args[pos])
	}
	return out
}

// legacyHandoffInsert projects a handoff upsert onto LegacyHandoffColumns as
// an embedded-dialect statement, so the legacy server path runs the same
// rewrite as statements issued through Exec.
func legacyHandoffInsert(u Upsert) (string, []any) {
	args := make([]any, len(LegacyHandoffColumns))
	marks := make([]string, len(LegacyHandoffColumns))
	for i, c := range LegacyHandoffColumns {
		args[i], _ = u.Value(c)
		marks[i] = "?"
	}
	stmt := fmt.Sprintf("INSERT OR REPLACE INTO handoffs (%s) VALUES (%s)",
		strings.Join(LegacyHandoffColumns, ", "), strings.Join(marks, ", "))
	return stmt, args
}
