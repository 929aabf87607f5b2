package store

import (
	"fmt"
	"strings"
)

// Column lists in the order records bind them. Both dialects share them.
var (
	HandoffColumns = []string{
		"id", "session_name", "session_uuid", "task_number", "file_path",
		"task_summary", "what_worked", "what_failed", "key_decisions",
		"files_modified", "outcome", "root_span_id", "turn_span_id",
		"session_id", "braintrust_session_id", "created_at", "indexed_at",
	}
	PlanColumns = []string{
		"id", "title", "file_path", "overview", "approach", "phases",
		"constraints", "indexed_at",
	}
	ContinuityColumns = []string{
		"id", "session_name", "file_path", "goal", "state_done", "state_now",
		"state_next", "key_learnings", "key_decisions", "snapshot_reason",
		"indexed_at",
	}
	QueryColumns = []string{
		"id", "question", "kind", "backend", "result_count", "created_at",
	}
)

// ftsIndex describes an external-content FTS5 table over a content table.
// Weights are applied by Maintain in column order; higher weights rank
// structured fields above free text.
type ftsIndex struct {
	table   string
	columns []string
	weights []float64
}

func (f ftsIndex) name() string { return f.table + "_fts" }

func (f ftsIndex) rank() string {
	ws := make([]string, len(f.weights))
	for i, w := range f.weights {
		ws[i] = fmt.Sprintf("%.1f", w)
	}
	return "bm25(" + strings.Join(ws, ", ") + ")"
}

var ftsIndexes = []ftsIndex{
	{
		table:   "handoffs",
		columns: []string{"task_summary", "key_decisions", "what_worked", "what_failed", "files_modified"},
		weights: []float64{10, 5, 3, 3, 1},
	},
	{
		table:   "plans",
		columns: []string{"title", "overview", "approach", "constraints", "phases"},
		weights: []float64{10, 5, 3, 3, 1},
	},
	{
		table:   "continuity",
		columns: []string{"goal", "key_learnings", "key_decisions", "state_now", "state_next"},
		weights: []float64{10, 5, 5, 3, 1},
	},
	{
		table:   "queries",
		columns: []string{"question"},
		weights: []float64{1},
	},
}

func ftsIndexFor(table string) (ftsIndex, bool) {
	for _, f := range ftsIndexes {
		if f.table == table {
			return f, true
		}
	}
	return ftsIndex{}, false
}

const embeddedTables = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS handoffs (
	id TEXT PRIMARY KEY,
	session_name TEXT,
	session_uuid TEXT,
	task_number INTEGER,
	file_path TEXT NOT NULL UNIQUE,
	task_summary TEXT,
	what_worked TEXT,
	what_failed TEXT,
	key_decisions TEXT,
	files_modified TEXT,
	outcome TEXT NOT NULL DEFAULT 'UNKNOWN'
		CHECK (outcome IN ('SUCCEEDED', 'PARTIAL_PLUS', 'PARTIAL_MINUS', 'FAILED', 'UNKNOWN')),
	root_span_id TEXT,
	turn_span_id TEXT,
	session_id TEXT,
	braintrust_session_id TEXT,
	created_at TEXT,
	indexed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_handoffs_session ON handoffs(session_name);
CREATE INDEX IF NOT EXISTS idx_handoffs_outcome ON handoffs(outcome);

CREATE TABLE IF NOT EXISTS plans (
	id TEXT PRIMARY KEY,
	title TEXT,
	file_path TEXT NOT NULL UNIQUE,
	overview TEXT,
	approach TEXT,
	phases TEXT,
	constraints TEXT,
	indexed_at TEXT
);

CREATE TABLE IF NOT EXISTS continuity (
	id TEXT PRIMARY KEY,
	session_name TEXT,
	file_path TEXT NOT NULL UNIQUE,
	goal TEXT,
	state_done TEXT,
	state_now TEXT,
	state_next TEXT,
	key_learnings TEXT,
	key_decisions TEXT,
	snapshot_reason TEXT,
	indexed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_continuity_session ON continuity(session_name);

CREATE TABLE IF NOT EXISTS queries (
	id TEXT PRIMARY KEY,
	question TEXT NOT NULL,
	kind TEXT,
	backend TEXT,
	result_count INTEGER,
	created_at TEXT
);

INSERT OR IGNORE INTO schema_version (version) VALUES (1);
`

// embeddedSchema returns the full idempotent schema script, including one
// FTS5 table per content table and the triggers that keep it in sync.
func embeddedSchema() string {
	var sb strings.Builder
	sb.WriteString(embeddedTables)
	for _, f := range ftsIndexes {
		sb.WriteString(ftsDDL(f))
	}
	return sb.String()
}

func ftsDDL(f ftsIndex) string {
	cols := strings.Join(f.columns, ", ")
	newCols := prefixed("new.", f.columns)
	oldCols := prefixed("old.", f.columns)

	return fmt.Sprintf(`
CREATE VIRTUAL TABLE IF NOT EXISTS %[1]s USING fts5(
	%[3]s,
	content='%[2]s',
	content_rowid='rowid',
	tokenize='porter unicode61'
);
CREATE TRIGGER IF NOT EXISTS %[2]s_ai AFTER INSERT ON %[2]s BEGIN
	INSERT INTO %[1]s(rowid, %[3]s) VALUES (new.rowid, %[4]s);
END;
CREATE TRIGGER IF NOT EXISTS %[2]s_ad AFTER DELETE ON %[2]s BEGIN
	INSERT INTO %[1]s(%[1]s, rowid, %[3]s) VALUES ('delete', old.rowid, %[5]s);
END;
CREATE TRIGGER IF NOT EXISTS %[2]s_au AFTER UPDATE ON %[2]s BEGIN
	INSERT INTO %[1]s(%[1]s, rowid, %[3]s) VALUES ('delete', old.rowid, %[5]s);
	INSERT INTO %[1]s(rowid, %[3]s) VALUES (new.rowid, %[4]s);
END;
`, f.name(), f.table, cols, newCols, oldCols)
}

func prefixed(prefix string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = prefix + c
	}
	return strings.Join(out, ", ")
}

// serverSchema mirrors the embedded tables without FTS. Timestamps stay TEXT
// so both dialects bind identical values.
var serverSchema = []string{
	`CREATE TABLE IF NOT EXISTS handoffs (
		id TEXT PRIMARY KEY,
		session_name TEXT,
		session_uuid TEXT,
		task_number INTEGER,
		file_path TEXT NOT NULL UNIQUE,
		task_summary TEXT,
		what_worked TEXT,
		what_failed TEXT,
		key_decisions TEXT,
		files_modified TEXT,
		outcome TEXT NOT NULL DEFAULT 'UNKNOWN',
		root_span_id TEXT,
		turn_span_id TEXT,
		session_id TEXT,
		braintrust_session_id TEXT,
		created_at TEXT,
		indexed_at TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_handoffs_session ON handoffs(session_name)`,
	`CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		title TEXT,
		file_path TEXT NOT NULL UNIQUE,
		overview TEXT,
		approach TEXT,
		phases TEXT,
		constraints TEXT,
		indexed_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS continuity (
		id TEXT PRIMARY KEY,
		session_name TEXT,
		file_path TEXT NOT NULL UNIQUE,
		goal TEXT,
		state_done TEXT,
		state_now TEXT,
		state_next TEXT,
		key_learnings TEXT,
		key_decisions TEXT,
		snapshot_reason TEXT,
		indexed_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS queries (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		kind TEXT,
		backend TEXT,
		result_count INTEGER,
		created_at TEXT
	)`,
}

// legacyServerHandoffs is the handoffs table of older server deployments,
// created only when the legacy rewrite is enabled and the table is missing.
const legacyServerHandoffs = `CREATE TABLE IF NOT EXISTS handoffs (
	id UUID PRIMARY KEY,
	session_name TEXT,
	file_path TEXT UNIQUE,
	goal TEXT,
	what_worked TEXT,
	what_failed TEXT,
	key_decisions TEXT,
	outcome TEXT DEFAULT 'UNKNOWN',
	root_span_id TEXT,
	session_id TEXT,
	indexed_at TIMESTAMPTZ DEFAULT NOW()
)`
