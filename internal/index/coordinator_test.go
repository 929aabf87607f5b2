package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/continuity-tools/artifact-index/internal/watcher"
)

type chanSource struct {
	events chan []watcher.FileEvent
	errs   chan error
}

func (s *chanSource) Events() <-chan []watcher.FileEvent { return s.events }
func (s *chanSource) Errors() <-chan error               { return s.errs }

func TestCoordinator_HandleEvents(t *testing.T) {
	// Given: a plan, an unrelated file and a deleted handoff
	p := newProject(t)
	plan := p.write(t, "thoughts/shared/plans/a.md", planDoc)
	other := p.write(t, "notes/todo.md", "# todo")
	c := NewCoordinator(New(p.backend, p.cfg))

	// When
	c.HandleEvents(context.Background(), []watcher.FileEvent{
		{Path: plan, Operation: watcher.OpCreate},
		{Path: other, Operation: watcher.OpModify},
		{Path: filepath.Join(p.root, "thoughts/shared/handoffs/s/gone.md"), Operation: watcher.OpDelete},
	})

	// Then: only the plan is indexed; the delete is ignored
	stats := c.Stats()
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, 1, p.count(t, "plans"))
}

func TestCoordinator_HandleEvents_DeleteKeepsRecord(t *testing.T) {
	// Given: an indexed plan that is then removed from disk
	p := newProject(t)
	plan := p.write(t, "thoughts/shared/plans/a.md", planDoc)
	c := NewCoordinator(New(p.backend, p.cfg))
	c.HandleEvents(context.Background(), []watcher.FileEvent{{Path: plan, Operation: watcher.OpCreate}})
	require.NoError(t, os.Remove(plan))

	// When
	c.HandleEvents(context.Background(), []watcher.FileEvent{{Path: plan, Operation: watcher.OpDelete}})

	// Then
	assert.Equal(t, 1, p.count(t, "plans"))
}

func TestCoordinator_HandleEvents_SkipsSymlinksAndVanishedFiles(t *testing.T) {
	p := newProject(t)
	target := p.write(t, "thoughts/shared/plans/real.md", planDoc)
	link := filepath.Join(p.root, "thoughts/shared/plans/link.md")
	require.NoError(t, os.Symlink(target, link))
	c := NewCoordinator(New(p.backend, p.cfg))

	c.HandleEvents(context.Background(), []watcher.FileEvent{
		{Path: link, Operation: watcher.OpCreate},
		{Path: filepath.Join(p.root, "thoughts/shared/plans/vanished.md"), Operation: watcher.OpCreate},
	})

	assert.Equal(t, 2, c.Stats().Skipped)
	assert.Zero(t, p.count(t, "plans"))
}

func TestCoordinator_HandleEvents_CountsFailures(t *testing.T) {
	p := newProject(t)
	bad := p.write(t, "thoughts/shared/handoffs/s/broken.yaml", "goal: x\n")
	c := NewCoordinator(New(p.backend, p.cfg))

	c.HandleEvents(context.Background(), []watcher.FileEvent{{Path: bad, Operation: watcher.OpModify}})

	assert.Equal(t, 1, c.Stats().Failed)
}

func TestCoordinator_Filter(t *testing.T) {
	p := newProject(t)
	c := NewCoordinator(New(p.backend, p.cfg))

	assert.True(t, c.Filter(filepath.Join(p.root, "thoughts/shared/handoffs/s/task-01.md")))
	assert.True(t, c.Filter(filepath.Join(p.root, "CONTINUITY_CLAUDE-x.md")))
	assert.False(t, c.Filter(filepath.Join(p.root, "main.go")))
}

func TestCoordinator_Run(t *testing.T) {
	// Given: a coordinator consuming a fake event source
	p := newProject(t)
	plan := p.write(t, "thoughts/shared/plans/a.md", planDoc)
	c := NewCoordinator(New(p.backend, p.cfg))
	src := &chanSource{events: make(chan []watcher.FileEvent, 1), errs: make(chan error, 1)}
	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), src) }()

	// When: one batch arrives and the source closes
	src.errs <- assert.AnError
	src.events <- []watcher.FileEvent{{Path: plan, Operation: watcher.OpCreate, Timestamp: time.Now()}}
	close(src.events)

	// Then
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, 1, c.Stats().Indexed)
}

func TestCoordinator_Run_StopsOnCancel(t *testing.T) {
	p := newProject(t)
	c := NewCoordinator(New(p.backend, p.cfg))
	src := &chanSource{events: make(chan []watcher.FileEvent), errs: make(chan error)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Run(ctx, src)

	assert.ErrorIs(t, err, context.Canceled)
}
