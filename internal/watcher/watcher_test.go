package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Debouncer
// ============================================================================

func receive(t *testing.T, ch <-chan []FileEvent, timeout time.Duration) []FileEvent {
	t.Helper()
	select {
	case batch, ok := <-ch:
		require.True(t, ok, "channel closed")
		return batch
	case <-time.After(timeout):
		t.Fatal("timed out waiting for batch")
		return nil
	}
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	// When: the same path is written several times in quick succession
	for i := 0; i < 5; i++ {
		d.Add(FileEvent{Path: "/p/a.md", Operation: OpModify, Timestamp: time.Now()})
	}

	// Then: one event is emitted
	batch := receive(t, d.Output(), time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestDebouncer_MergeRules(t *testing.T) {
	tests := []struct {
		name   string
		ops    []Operation
		want   Operation
		cancel bool
	}{
		{name: "create then modify", ops: []Operation{OpCreate, OpModify}, want: OpCreate},
		{name: "delete then create", ops: []Operation{OpDelete, OpCreate}, want: OpModify},
		{name: "modify then delete", ops: []Operation{OpModify, OpDelete}, want: OpDelete},
		{name: "create then delete", ops: []Operation{OpCreate, OpDelete}, cancel: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(20 * time.Millisecond)
			defer d.Stop()

			for _, op := range tt.ops {
				d.Add(FileEvent{Path: "/p/x.md", Operation: op})
			}
			// A marker path keeps the batch non-empty when x.md cancels out.
			d.Add(FileEvent{Path: "/p/z.md", Operation: OpModify})

			batch := receive(t, d.Output(), time.Second)
			if tt.cancel {
				require.Len(t, batch, 1)
				assert.Equal(t, "/p/z.md", batch[0].Path)
				return
			}
			require.Len(t, batch, 2)
			assert.Equal(t, "/p/x.md", batch[0].Path)
			assert.Equal(t, tt.want, batch[0].Operation)
		})
	}
}

func TestDebouncer_BatchSortedByPath(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "/p/c.md", Operation: OpCreate})
	d.Add(FileEvent{Path: "/p/a.md", Operation: OpCreate})
	d.Add(FileEvent{Path: "/p/b.md", Operation: OpCreate})

	batch := receive(t, d.Output(), time.Second)
	require.Len(t, batch, 3)
	assert.Equal(t, "/p/a.md", batch[0].Path)
	assert.Equal(t, "/p/b.md", batch[1].Path)
	assert.Equal(t, "/p/c.md", batch[2].Path)
}

func TestDebouncer_StopClosesOutputAndIgnoresAdds(t *testing.T) {
	d := NewDebouncer(time.Hour)
	d.Add(FileEvent{Path: "/p/a.md", Operation: OpCreate})

	d.Stop()
	d.Stop()
	d.Add(FileEvent{Path: "/p/b.md", Operation: OpCreate})

	_, ok := <-d.Output()
	assert.False(t, ok)
}

// ============================================================================
// Options
// ============================================================================

func TestOptions_WithDefaults(t *testing.T) {
	o := Options{}.WithDefaults()

	assert.Equal(t, 500*time.Millisecond, o.DebounceWindow)
	assert.Equal(t, 2*time.Second, o.PollInterval)
	assert.Equal(t, 64, o.BufferSize)
}

func TestOptions_Validate_RejectsBadExclude(t *testing.T) {
	err := Options{ExcludeDirs: []string{"[unclosed"}}.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "[unclosed")
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "MODIFY", OpModify.String())
	assert.Equal(t, "DELETE", OpDelete.String())
	assert.Equal(t, "UNKNOWN", Operation(42).String())
}

// ============================================================================
// Watcher
// ============================================================================

func mdOnly(path string) bool { return strings.HasSuffix(path, ".md") }

// startWatcher runs w on root in the background and stops it on cleanup.
func startWatcher(t *testing.T, w *Watcher, root string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx, root) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// Give the watcher time to register directories.
	time.Sleep(100 * time.Millisecond)
}

// waitFor drains batches until one contains path, or fails.
func waitFor(t *testing.T, w *Watcher, path string) FileEvent {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case batch, ok := <-w.Events():
			require.True(t, ok, "events closed")
			for _, ev := range batch {
				if ev.Path == path {
					return ev
				}
			}
		case <-deadline:
			t.Fatalf("no event for %s", path)
		}
	}
}

func TestWatcher_ReportsNewFile(t *testing.T) {
	for _, polling := range []bool{false, true} {
		name := "fsnotify"
		if polling {
			name = "polling"
		}
		t.Run(name, func(t *testing.T) {
			// Given: a watcher on an empty root
			root := t.TempDir()
			w, err := New(Options{
				DebounceWindow: 20 * time.Millisecond,
				PollInterval:   50 * time.Millisecond,
				Filter:         mdOnly,
				ForcePolling:   polling,
			})
			require.NoError(t, err)
			if polling {
				assert.Equal(t, "polling", w.Mode())
			}
			startWatcher(t, w, root)

			// When: a markdown file is written
			path := filepath.Join(root, "note.md")
			require.NoError(t, os.WriteFile(path, []byte("# hi"), 0o644))

			// Then: its creation is reported with an absolute path
			ev := waitFor(t, w, path)
			assert.True(t, filepath.IsAbs(ev.Path))
			assert.NotEqual(t, OpDelete, ev.Operation)
		})
	}
}

func TestWatcher_NewSubdirectoryIsWatched(t *testing.T) {
	// Given: a running fsnotify watcher
	root := t.TempDir()
	w, err := New(Options{DebounceWindow: 20 * time.Millisecond, Filter: mdOnly})
	require.NoError(t, err)
	startWatcher(t, w, root)

	// When: a nested directory is created and a file written inside it
	dir := filepath.Join(root, "thoughts", "shared", "handoffs", "s1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "task-01.md")
	require.NoError(t, os.WriteFile(path, []byte("# t"), 0o644))

	// Then: the file is reported
	waitFor(t, w, path)
}

func TestWatcher_IgnoresFilteredAndExcluded(t *testing.T) {
	// Given: a polling watcher with .git excluded and an md filter
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	w, err := New(Options{
		DebounceWindow: 20 * time.Millisecond,
		PollInterval:   30 * time.Millisecond,
		ExcludeDirs:    []string{".git"},
		Filter:         mdOnly,
		ForcePolling:   true,
	})
	require.NoError(t, err)
	startWatcher(t, w, root)

	// When: an excluded file, a filtered file and a wanted file are written
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "x.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "x.txt"), []byte("x"), 0o644))
	wanted := filepath.Join(root, "keep.md")
	require.NoError(t, os.WriteFile(wanted, []byte("x"), 0o644))

	// Then: only the wanted file ever appears
	deadline := time.After(2 * time.Second)
	for {
		select {
		case batch := <-w.Events():
			for _, ev := range batch {
				assert.Equal(t, wanted, ev.Path)
				if ev.Path == wanted {
					return
				}
			}
		case <-deadline:
			t.Fatal("wanted file not reported")
		}
	}
}

func TestWatcher_StartRejectsMissingRoot(t *testing.T) {
	w, err := New(Options{ForcePolling: true})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	err = w.Start(context.Background(), filepath.Join(t.TempDir(), "missing"))

	assert.Error(t, err)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(Options{})
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
}
