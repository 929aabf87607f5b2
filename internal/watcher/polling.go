package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"
)

type snapshot struct {
	modTime time.Time
	size    int64
}

func (w *Watcher) runPolling(ctx context.Context) error {
	state := w.scan()

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-ticker.C:
			current := w.scan()
			now := time.Now()
			for path, snap := range current {
				prev, seen := state[path]
				switch {
				case !seen:
					w.debouncer.Add(FileEvent{Path: path, Operation: OpCreate, Timestamp: now})
				case prev.modTime != snap.modTime || prev.size != snap.size:
					w.debouncer.Add(FileEvent{Path: path, Operation: OpModify, Timestamp: now})
				}
			}
			for path := range state {
				if _, ok := current[path]; !ok {
					w.debouncer.Add(FileEvent{Path: path, Operation: OpDelete, Timestamp: now})
				}
			}
			state = current
		}
	}
}

// scan records the files under root that pass the filter.
func (w *Watcher) scan() map[string]snapshot {
	out := make(map[string]snapshot)
	_ = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != w.root && w.match.skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !w.match.wantFile(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		out[path] = snapshot{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	return out
}
