package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/continuity-tools/artifact-index/internal/artifact"
	"github.com/continuity-tools/artifact-index/internal/errors"
)

const markdownHandoff = `---
status: partial
date: 2026-01-20
root_span_id: span-1
session_id: sess-9
---
# Handoff

## Summary
Coarse summary.

## What Was Done
Wired the pgx backend.

## What Worked
- upsert descriptor

## What Failed
- nothing

## Decisions
- coarse decision

### Key Decisions
- keep md5 ids

## Files Modified
- ` + "`internal/store/postgres.go:1-40`" + `
- **File**: ` + "`internal/store/upsert.go`" + `
`

const yamlHandoff = `---
session: auth-refactor
date: 2026-01-20
status: complete
outcome: SUCCEEDED
---
goal: Finish the server backend
done_this_session:
  - task: Add pgx driver
    files: [internal/store/postgres.go, go.mod]
  - task: Add tests
    files:
      - internal/store/postgres_test.go
worked:
  - generic upsert
  - retries
failed:
  - legacy rewrite
decisions:
  ids: keep md5
  driver: pgx stdlib
files:
  created: [internal/store/upsert.go]
  modified: [internal/store/sqlite.go]
`

func freezeNow(t *testing.T) {
	t.Helper()
	prev := now
	now = func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = prev })
}

func TestParseHandoffMarkdown(t *testing.T) {
	// Given: a handoff under a session directory with a uuid suffix
	path := "/r/thoughts/shared/handoffs/auth-refactor-550e8400/task-03.md"

	// When
	h, err := ParseHandoffMarkdown(path, []byte(markdownHandoff))

	// Then
	require.NoError(t, err)
	assert.Equal(t, artifact.ID(path), h.ID)
	assert.Equal(t, "auth-refactor", h.SessionName)
	assert.Equal(t, "550e8400", h.SessionUUID)
	require.NotNil(t, h.TaskNumber)
	assert.Equal(t, 3, *h.TaskNumber)
	assert.Equal(t, "Wired the pgx backend.", h.TaskSummary)
	assert.Equal(t, "- upsert descriptor", h.WhatWorked)
	assert.Equal(t, "- nothing", h.WhatFailed)
	assert.Equal(t, "- keep md5 ids", h.KeyDecisions)
	assert.Equal(t, []string{
		"internal/store/postgres.go",
		"internal/store/upsert.go",
		"internal/store/upsert.go",
	}, h.FilesModified)
	assert.Equal(t, artifact.OutcomePartialPlus, h.Outcome)
	assert.Equal(t, "span-1", h.RootSpanID)
	assert.Equal(t, "sess-9", h.SessionID)
	assert.Equal(t, "2026-01-20", h.CreatedAt)
}

func TestParseHandoffMarkdown_Defaults(t *testing.T) {
	freezeNow(t)

	h, err := ParseHandoffMarkdown("/r/handoffs/s/notes.md", []byte("just text"))

	require.NoError(t, err)
	assert.Equal(t, artifact.OutcomeUnknown, h.Outcome)
	assert.Nil(t, h.TaskNumber)
	assert.Equal(t, "", h.TaskSummary)
	assert.Empty(t, h.FilesModified)
	assert.Equal(t, "2026-10-17T12:00:00Z", h.CreatedAt)
}

func TestParseHandoffMarkdown_EmptyWhatWasDoneKeepsPrecedence(t *testing.T) {
	// Given: an empty "What Was Done" section next to a filled summary
	doc := "## What Was Done\n\n## Summary\nShould not be used.\n\n## Decisions\n- d\n"

	// When
	h, err := ParseHandoffMarkdown("/r/handoffs/s/task-2.md", []byte(doc))

	// Then: the present heading wins even though it is empty
	require.NoError(t, err)
	assert.Equal(t, "", h.TaskSummary)
	assert.Equal(t, "- d", h.KeyDecisions)
}

func TestParseHandoffMarkdown_TruncatesSummary(t *testing.T) {
	long := strings.Repeat("é", 900)
	h, err := ParseHandoffMarkdown("/r/handoffs/s/task-1.md", []byte("## Summary\n"+long))

	require.NoError(t, err)
	assert.Equal(t, 500, len([]rune(h.TaskSummary)))
}

func TestParseHandoffYAML(t *testing.T) {
	path := "/r/thoughts/shared/handoffs/auth-refactor/2026-01-20_phase-1-11-complete.yaml"

	h, err := ParseHandoffYAML(path, []byte(yamlHandoff))

	require.NoError(t, err)
	assert.Equal(t, "auth-refactor", h.SessionName)
	assert.Equal(t, "", h.SessionUUID)
	require.NotNil(t, h.TaskNumber)
	assert.Equal(t, 111, *h.TaskNumber)
	assert.Equal(t, "Finish the server backend", h.TaskSummary)
	assert.Equal(t, "- generic upsert\n- retries", h.WhatWorked)
	assert.Equal(t, "- legacy rewrite", h.WhatFailed)
	assert.Equal(t, "- ids: keep md5\n- driver: pgx stdlib", h.KeyDecisions)
	assert.Equal(t, []string{
		"internal/store/postgres.go",
		"go.mod",
		"internal/store/postgres_test.go",
		"internal/store/upsert.go",
		"internal/store/sqlite.go",
	}, h.FilesModified)
	assert.Equal(t, artifact.OutcomeSucceeded, h.Outcome)
	assert.Equal(t, "2026-01-20", h.CreatedAt)
}

func TestParseHandoffYAML_SummaryFallsBackToFirstTask(t *testing.T) {
	doc := "---\noutcome: wip\n---\ndone_this_session:\n  - task: First\n  - task: Second\ndecisions:\n  - one\n  - two\n"

	h, err := ParseHandoffYAML("/r/handoffs/s/x.yaml", []byte(doc))

	require.NoError(t, err)
	assert.Equal(t, "First", h.TaskSummary)
	assert.Equal(t, "- one\n- two", h.KeyDecisions)
	assert.Equal(t, artifact.OutcomeUnknown, h.Outcome)
}

func TestParseHandoffYAML_SeparatorInsideBlockScalar(t *testing.T) {
	// Given: indented --- lines inside literal blocks are content, not splits
	doc := "---\noutcome: FAILED\nnotes: |\n  draft\n  ---\n  final\n---\n" +
		"goal: |\n  before\n  ---\n  after\n"

	// When
	h, err := ParseHandoffYAML("/r/handoffs/s/x.yml", []byte(doc))

	// Then
	require.NoError(t, err)
	assert.Equal(t, artifact.OutcomeFailed, h.Outcome)
	assert.Contains(t, h.TaskSummary, "before")
	assert.Contains(t, h.TaskSummary, "after")
}

func TestParseHandoffYAML_TrailingBlanksAfterSeparator(t *testing.T) {
	doc := "--- \noutcome: success\n---\t\ngoal: g\n"

	h, err := ParseHandoffYAML("/r/handoffs/s/x.yaml", []byte(doc))

	require.NoError(t, err)
	assert.Equal(t, "g", h.TaskSummary)
	assert.Equal(t, artifact.OutcomeSucceeded, h.Outcome)
}

func TestParseHandoffYAML_FormatErrors(t *testing.T) {
	tests := map[string]string{
		"no separators":       "goal: x\n",
		"one separator":       "---\noutcome: FAILED\n",
		"content before":      "title\n---\noutcome: x\n---\ngoal: y\n",
		"malformed body":      "---\noutcome: x\n---\ngoal: [unclosed\n",
		"body is not mapping": "---\noutcome: x\n---\n- a\n- b\n",
		"third document":      "---\noutcome: SUCCEEDED\n---\ngoal: g\nworked:\n  - a\n---\nfailed:\n  - boom\ndecisions:\n  k: v\n",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseHandoffYAML("/r/handoffs/s/bad.yaml", []byte(doc))

			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeFormat, errors.GetCode(err))
		})
	}
}

func TestParseHandoffYAML_EmptyBody(t *testing.T) {
	h, err := ParseHandoffYAML("/r/handoffs/s/x.yaml", []byte("---\noutcome: success\n---\n"))

	require.NoError(t, err)
	assert.Equal(t, artifact.OutcomeSucceeded, h.Outcome)
	assert.Empty(t, h.FilesModified)
}

func TestParsePlan(t *testing.T) {
	doc := "# Server Backend Plan\n\n## Overview\nMirror the schema.\n\n" +
		"## Implementation Approach\nUse pgx.\n\n" +
		"## Phase 1: Schema\nCreate tables.\n\n## Phase 2: Writes\nUpsert.\n\n" +
		"## What We're Not Doing\nMigrations.\n"

	p, err := ParsePlan("/r/thoughts/shared/plans/server.md", []byte(doc))

	require.NoError(t, err)
	assert.Equal(t, "Server Backend Plan", p.Title)
	assert.Equal(t, "Mirror the schema.", p.Overview)
	assert.Equal(t, "Use pgx.", p.Approach)
	assert.Equal(t, "Migrations.", p.Constraints)
	assert.Equal(t, []artifact.Phase{
		{Name: "phase_1:_schema", Content: "Create tables."},
		{Name: "phase_2:_writes", Content: "Upsert."},
	}, p.Phases)
}

func TestParsePlan_TitleFallsBackToStem(t *testing.T) {
	p, err := ParsePlan("/r/plans/2026-01-01-cleanup.md", []byte("## Approach\nx"))

	require.NoError(t, err)
	assert.Equal(t, "2026-01-01-cleanup", p.Title)
	assert.Equal(t, "x", p.Approach)
	assert.Empty(t, p.Phases)
}

func TestParseContinuity(t *testing.T) {
	doc := "# Ledger\n\n## Goal\nShip the indexer.\n\n## State\n" +
		"- [x] Parser\n- [X] Schema\n- [->] Backends\n- [ ] CLI\n\n" +
		"## Key Learnings (This Session)\nWAL helps readers.\n\n## Key Decisions\nmd5 ids.\n"

	c, err := ParseContinuity("/r/CONTINUITY_CLAUDE-indexer.md", []byte(doc))

	require.NoError(t, err)
	assert.Equal(t, "indexer", c.SessionName)
	assert.Equal(t, "Ship the indexer.", c.Goal)
	assert.Equal(t, []string{"- [x] Parser", "- [X] Schema"}, c.StateDone)
	assert.Equal(t, "- [->] Backends", c.StateNow)
	assert.Equal(t, "- [ ] CLI", c.StateNext)
	assert.Equal(t, "WAL helps readers.", c.KeyLearnings)
	assert.Equal(t, "md5 ids.", c.KeyDecisions)
	assert.Equal(t, "manual", c.SnapshotReason)
}

func TestParseContinuity_SnapshotReasonFromFrontmatter(t *testing.T) {
	doc := "---\nsnapshot_reason: pre-compact\n---\n## State\nNow: writing tests\nNext: docs\n"

	c, err := ParseContinuity("/r/CONTINUITY_CLAUDE-x.md", []byte(doc))

	require.NoError(t, err)
	assert.Equal(t, "pre-compact", c.SnapshotReason)
	assert.Equal(t, "Now: writing tests", c.StateNow)
	assert.Equal(t, "Next: docs", c.StateNext)
}

func TestDetect(t *testing.T) {
	tests := []struct {
		path    string
		kind    artifact.Kind
		dialect artifact.Dialect
	}{
		{"/r/thoughts/shared/handoffs/s/task-1.md", artifact.KindHandoff, artifact.DialectMarkdown},
		{"/r/thoughts/shared/handoffs/s/phase-1-2.yaml", artifact.KindHandoff, artifact.DialectYAML},
		{"/r/thoughts/shared/handoffs/s/phase-1-2.YML", artifact.KindHandoff, artifact.DialectYAML},
		{"/r/thoughts/shared/plans/p.md", artifact.KindPlan, artifact.DialectMarkdown},
		{"/r/CONTINUITY_CLAUDE-auth.md", artifact.KindContinuity, artifact.DialectMarkdown},
		{"/r/handoffs/CONTINUITY_CLAUDE-auth.md", artifact.KindContinuity, artifact.DialectMarkdown},
		{"/r/plans/p.yaml", artifact.KindUnknown, ""},
		{"/r/notes/readme.md", artifact.KindUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			kind, dialect := Detect(tt.path)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.dialect, dialect)
		})
	}
}

func TestParse_UnknownKind(t *testing.T) {
	rec, err := Parse("/r/notes/readme.md", []byte("# hi"))

	assert.Nil(t, rec)
	assert.Equal(t, errors.ErrCodeUnknownKind, errors.GetCode(err))
}

func TestParse_FormatErrorYieldsNilRecord(t *testing.T) {
	rec, err := Parse("/r/handoffs/s/bad.yaml", []byte("nope"))

	assert.Nil(t, rec)
	assert.Error(t, err)
}
