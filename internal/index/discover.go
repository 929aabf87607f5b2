package index

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/continuity-tools/artifact-index/internal/artifact"
	"github.com/continuity-tools/artifact-index/internal/config"
)

// source is one artifact kind's location with its patterns compiled.
type source struct {
	kind      artifact.Kind
	dir       string
	patterns  []glob.Glob
	recursive bool
	exclude   []glob.Glob
}

func newSource(cfg *config.Config, kind artifact.Kind) (*source, error) {
	var sc config.SourceConfig
	switch kind {
	case artifact.KindHandoff:
		sc = cfg.Paths.Handoffs
	case artifact.KindPlan:
		sc = cfg.Paths.Plans
	case artifact.KindContinuity:
		sc = cfg.Paths.Continuity
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}

	src := &source{kind: kind, dir: cfg.Resolve(sc.Dir)}
	for _, p := range sc.Patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern '%s': %w", p, err)
		}
		src.patterns = append(src.patterns, g)
		if strings.Contains(p, "/") || strings.Contains(p, "**") {
			src.recursive = true
		}
	}
	for _, p := range cfg.Paths.ExcludeDirs {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern '%s': %w", p, err)
		}
		src.exclude = append(src.exclude, g)
	}
	return src, nil
}

func (s *source) matches(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, g := range s.patterns {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

func (s *source) excluded(name string) bool {
	for _, g := range s.exclude {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// owns reports whether abs is a document of this source: inside dir (directly
// inside it for non-recursive sources) and matching a pattern.
func (s *source) owns(abs string) bool {
	rel, err := filepath.Rel(s.dir, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	if !s.recursive && strings.ContainsRune(rel, filepath.Separator) {
		return false
	}
	for _, part := range strings.Split(filepath.Dir(rel), string(filepath.Separator)) {
		if part != "." && s.excluded(part) {
			return false
		}
	}
	return s.matches(rel)
}

// files lists matching regular files in lexical order. A missing directory
// yields os.ErrNotExist.
func (s *source) files() ([]string, error) {
	info, err := os.Stat(s.dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", s.dir)
	}

	var out []string
	if !s.recursive {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Type().IsRegular() && s.matches(e.Name()) {
				out = append(out, filepath.Join(s.dir, e.Name()))
			}
		}
		return out, nil
	}

	err = filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() && path != s.dir {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() {
			if path != s.dir && s.excluded(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return nil
		}
		if s.matches(rel) {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

// dialectFor picks the parser dialect of a handoff from its extension.
func dialectFor(path string) artifact.Dialect {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return artifact.DialectYAML
	}
	return artifact.DialectMarkdown
}
