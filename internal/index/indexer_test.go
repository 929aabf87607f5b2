package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/continuity-tools/artifact-index/internal/artifact"
	"github.com/continuity-tools/artifact-index/internal/config"
	"github.com/continuity-tools/artifact-index/internal/errors"
	"github.com/continuity-tools/artifact-index/internal/store"
)

const handoffDoc = `---
status: complete
date: 2026-01-20
---
# Handoff

## Summary
Moved the index onto the server backend.

## Decisions
- keep md5 ids
`

const planDoc = `# Plan: Server Backend

## Overview
Add a Postgres backend next to SQLite.

## Phase 1: Driver
Wire pgx.
`

const ledgerDoc = `# Session: auth

## Goal
Ship auth.

## State
- Done: login
- Now: tokens
`

// project is a temp project root with an open embedded backend.
type project struct {
	root    string
	cfg     *config.Config
	backend *store.SQLite
}

func newProject(t *testing.T) *project {
	t.Helper()
	root := t.TempDir()
	cfg := config.NewConfig()
	cfg.Root = root

	ctx := context.Background()
	b, err := store.OpenSQLite(ctx, store.SQLiteOptions{Path: filepath.Join(root, "index.db")})
	require.NoError(t, err)
	require.NoError(t, b.InitSchema(ctx))
	t.Cleanup(func() { _ = b.Close() })

	return &project{root: root, cfg: cfg, backend: b}
}

func (p *project) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(p.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (p *project) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, p.backend.DB().QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// ============================================================================
// Batch runs
// ============================================================================

func TestIndexer_Run_IndexesEveryKind(t *testing.T) {
	// Given: one document of each kind in the default locations
	p := newProject(t)
	p.write(t, "thoughts/shared/handoffs/auth/task-01.md", handoffDoc)
	p.write(t, "thoughts/shared/plans/server.md", planDoc)
	p.write(t, "CONTINUITY_CLAUDE-auth.md", ledgerDoc)
	ix := New(p.backend, p.cfg)

	// When
	results, err := ix.Run(context.Background(), All())

	// Then: results come back in kind order and every row landed
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, artifact.KindHandoff, results[0].Kind)
	assert.Equal(t, artifact.KindPlan, results[1].Kind)
	assert.Equal(t, artifact.KindContinuity, results[2].Kind)
	for _, r := range results {
		assert.Equal(t, 1, r.Indexed, r.Kind)
		assert.Zero(t, r.Skipped(), r.Kind)
	}
	assert.Equal(t, 1, p.count(t, "handoffs"))
	assert.Equal(t, 1, p.count(t, "plans"))
	assert.Equal(t, 1, p.count(t, "continuity"))
}

func TestIndexer_Run_IsIdempotent(t *testing.T) {
	// Given: an indexed project
	p := newProject(t)
	p.write(t, "thoughts/shared/handoffs/auth/task-01.md", handoffDoc)
	p.write(t, "thoughts/shared/handoffs/auth/task-02.md", handoffDoc)
	ix := New(p.backend, p.cfg)
	_, err := ix.Run(context.Background(), Selection{Handoffs: true})
	require.NoError(t, err)

	// When: the same run repeats
	_, err = ix.Run(context.Background(), Selection{Handoffs: true})

	// Then: rows are replaced, not duplicated
	require.NoError(t, err)
	assert.Equal(t, 2, p.count(t, "handoffs"))
	assert.Equal(t, 2, p.count(t, "handoffs_fts"))
}

func TestIndexer_IndexKind_SkipsMalformedDocument(t *testing.T) {
	// Given: three handoffs, one of them a YAML file without frontmatter
	p := newProject(t)
	p.write(t, "thoughts/shared/handoffs/s/task-01.md", handoffDoc)
	p.write(t, "thoughts/shared/handoffs/s/task-02.md", handoffDoc)
	bad := p.write(t, "thoughts/shared/handoffs/s/broken.yaml", "goal: no frontmatter\n")
	ix := New(p.backend, p.cfg)

	// When
	res, err := ix.IndexHandoffs(context.Background())

	// Then: the good ones are indexed and the bad one is reported
	require.NoError(t, err)
	assert.Equal(t, 3, res.Found)
	assert.Equal(t, 2, res.Indexed)
	require.Equal(t, 1, res.Skipped())
	assert.Equal(t, bad, res.Failures[0].Path)
	assert.Equal(t, errors.ErrCodeFormat, errors.GetCode(res.Failures[0].Err))
	assert.Equal(t, 2, p.count(t, "handoffs"))
}

func TestIndexer_IndexKind_ReportsProgress(t *testing.T) {
	// Given: two handoffs, one malformed, and a progress hook
	p := newProject(t)
	p.write(t, "thoughts/shared/handoffs/s/task-01.md", handoffDoc)
	bad := p.write(t, "thoughts/shared/handoffs/s/broken.yaml", "goal: no frontmatter\n")
	var events []Progress
	ix := New(p.backend, p.cfg, WithProgress(func(pr Progress) { events = append(events, pr) }))

	// When
	_, err := ix.IndexHandoffs(context.Background())

	// Then: the kind is announced, then every document is counted once
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, Progress{Kind: artifact.KindHandoff, Total: 2}, events[0])
	assert.Equal(t, 1, events[1].Done)
	assert.Equal(t, 2, events[2].Done)

	var failed []Progress
	for _, e := range events[1:] {
		assert.Equal(t, 2, e.Total)
		if e.Err != nil {
			failed = append(failed, e)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, bad, failed[0].Path)
	assert.Equal(t, errors.ErrCodeFormat, errors.GetCode(failed[0].Err))
}

func TestIndexer_IndexKind_MissingDirectory(t *testing.T) {
	// Given: no plans directory
	p := newProject(t)
	ix := New(p.backend, p.cfg)

	// When
	res, err := ix.IndexPlans(context.Background())

	// Then: not an error, just marked missing
	require.NoError(t, err)
	assert.True(t, res.Missing)
	assert.Equal(t, filepath.Join(p.root, "thoughts/shared/plans"), res.Dir)
	assert.Zero(t, res.Indexed)
}

func TestIndexer_IndexKind_PlansAreNotRecursive(t *testing.T) {
	// Given: a plan at the top level and one in a subdirectory
	p := newProject(t)
	p.write(t, "thoughts/shared/plans/top.md", planDoc)
	p.write(t, "thoughts/shared/plans/archive/old.md", planDoc)
	ix := New(p.backend, p.cfg)

	// When
	res, err := ix.IndexPlans(context.Background())

	// Then
	require.NoError(t, err)
	assert.Equal(t, 1, res.Found)
	assert.Equal(t, 1, p.count(t, "plans"))
}

func TestIndexer_IndexKind_OversizedDocumentIsSkipped(t *testing.T) {
	p := newProject(t)
	p.write(t, "thoughts/shared/plans/big.md", planDoc)
	ix := New(p.backend, p.cfg, WithMaxFileSize(8))

	res, err := ix.IndexPlans(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped())
	assert.Equal(t, errors.ErrCodeFileRead, errors.GetCode(res.Failures[0].Err))
}

func TestIndexer_Run_EmptySelection(t *testing.T) {
	p := newProject(t)
	results, err := New(p.backend, p.cfg).Run(context.Background(), Selection{})

	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestIndexer_Run_HonorsCancellation(t *testing.T) {
	p := newProject(t)
	p.write(t, "thoughts/shared/plans/a.md", planDoc)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(p.backend, p.cfg).Run(ctx, Selection{Plans: true})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndexer_Run_WithBatchLock(t *testing.T) {
	// Given: a run configured to take the batch lock
	p := newProject(t)
	p.write(t, "thoughts/shared/plans/a.md", planDoc)
	dbPath := filepath.Join(p.root, "index.db")
	ix := New(p.backend, p.cfg, WithBatchLock(dbPath))

	// When
	_, err := ix.Run(context.Background(), Selection{Plans: true})

	// Then: the lock was released afterwards
	require.NoError(t, err)
	other := NewBatchLock(dbPath)
	ok, err := other.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, other.Unlock())
}

// ============================================================================
// Workers
// ============================================================================

type serverBackend struct{ store.Backend }

func (serverBackend) Dialect() store.Dialect { return store.DialectServer }

func TestNew_WorkersOnlyOnServer(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Index.Workers = 4
	p := newProject(t)

	assert.Equal(t, 1, New(p.backend, cfg).Workers())
	assert.Equal(t, 4, New(serverBackend{}, cfg).Workers())
}

// ============================================================================
// Single file
// ============================================================================

func TestIndexer_IndexFile(t *testing.T) {
	// Given: a handoff on disk
	p := newProject(t)
	path := p.write(t, "thoughts/shared/handoffs/auth/task-07.md", handoffDoc)
	ix := New(p.backend, p.cfg)

	// When
	rec, err := ix.IndexFile(context.Background(), path)

	// Then
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, artifact.KindHandoff, rec.Kind())
	assert.Equal(t, path, rec.Path())
	assert.Equal(t, 1, p.count(t, "handoffs"))
}

func TestIndexer_IndexFile_Errors(t *testing.T) {
	p := newProject(t)
	ix := New(p.backend, p.cfg)
	notes := p.write(t, "notes/readme.md", "# hi")

	tests := []struct {
		name string
		path string
		code string
	}{
		{name: "missing file", path: filepath.Join(p.root, "nope.md"), code: errors.ErrCodeFileNotFound},
		{name: "directory", path: p.root, code: errors.ErrCodeFileNotFound},
		{name: "unknown kind", path: notes, code: errors.ErrCodeUnknownKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ix.IndexFile(context.Background(), tt.path)

			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
}

func TestIndexer_IndexFile_RenameCreatesNewRecord(t *testing.T) {
	// Given: an indexed plan
	p := newProject(t)
	oldPath := p.write(t, "thoughts/shared/plans/a.md", planDoc)
	ix := New(p.backend, p.cfg)
	first, err := ix.IndexFile(context.Background(), oldPath)
	require.NoError(t, err)

	// When: it is renamed and indexed again
	newPath := filepath.Join(filepath.Dir(oldPath), "b.md")
	require.NoError(t, os.Rename(oldPath, newPath))
	second, err := ix.IndexFile(context.Background(), newPath)
	require.NoError(t, err)

	// Then: identity follows the path, so the old row stays
	assert.NotEqual(t, first.(*artifact.Plan).ID, second.(*artifact.Plan).ID)
	assert.Equal(t, 2, p.count(t, "plans"))
}

func TestIndexer_Classify(t *testing.T) {
	// Given: plans configured in a non-default directory
	p := newProject(t)
	p.cfg.Paths.Plans.Dir = "docs/plans-v2"
	ix := New(p.backend, p.cfg)

	tests := []struct {
		rel  string
		want artifact.Kind
	}{
		{rel: "docs/plans-v2/roadmap.md", want: artifact.KindPlan},
		{rel: "thoughts/shared/handoffs/s/task-01.yaml", want: artifact.KindHandoff},
		{rel: "CONTINUITY_CLAUDE-auth.md", want: artifact.KindContinuity},
		{rel: "sub/plans/other.md", want: artifact.KindPlan},
		{rel: "README.md", want: artifact.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, ix.Classify(filepath.Join(p.root, tt.rel)))
		})
	}
}
