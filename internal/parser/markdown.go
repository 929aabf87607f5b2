// Package parser turns handoff, plan and continuity documents into
// artifact records. It does no I/O; callers pass file contents in.
package parser

import (
	"regexp"
	"strings"
)

// Regex patterns for markdown parsing
var (
	// Matches inline code spans that look like a path with an extension,
	// with an optional :line-range that is discarded.
	codeSpanFilePattern = regexp.MustCompile("`([^`]+\\.[a-z]+)(:[^`]*)?`")

	// Matches **File**: path and **File**: `path`
	fileLabelPattern = regexp.MustCompile("\\*\\*File\\*\\*:\\s*`?([^\\s`]+)`?")

	// Matches the first level-1 heading.
	titlePattern = regexp.MustCompile(`(?m)^# (.+?)\s*$`)
)

func normalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n")
}

// ParseFrontmatter splits a leading "---" delimited block of key: value lines
// from the body. Without both delimiters the whole text is the body.
func ParseFrontmatter(text string) (map[string]string, string) {
	text = normalizeNewlines(text)
	fm := map[string]string{}

	first, rest, ok := strings.Cut(text, "\n")
	if !ok || strings.TrimRight(first, " \t") != "---" {
		return fm, text
	}

	lines := strings.Split(rest, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "---" {
			continue
		}
		for _, kv := range lines[:i] {
			key, value, found := strings.Cut(kv, ":")
			if !found || strings.TrimSpace(key) == "" {
				continue
			}
			fm[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
		return fm, strings.Join(lines[i+1:], "\n")
	}
	return fm, text
}

// Sections holds heading-keyed section bodies in document order.
type Sections struct {
	keys   []string
	values map[string]string
}

func newSections() *Sections {
	return &Sections{values: map[string]string{}}
}

func (s *Sections) set(key, value string) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Get returns the section body, or "" when absent.
func (s *Sections) Get(key string) string {
	return s.values[key]
}

// First returns the body of the first key whose heading is present, even
// when that body is empty.
func (s *Sections) First(keys ...string) string {
	for _, k := range keys {
		if s.Has(k) {
			return s.values[k]
		}
	}
	return ""
}

// Has reports whether a heading produced key.
func (s *Sections) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Keys returns section keys in the order they first appeared.
func (s *Sections) Keys() []string {
	return append([]string(nil), s.keys...)
}

// Merge overlays other onto s; other's values win for shared keys.
func (s *Sections) Merge(other *Sections) *Sections {
	out := newSections()
	for _, k := range s.keys {
		out.set(k, s.values[k])
	}
	for _, k := range other.keys {
		out.set(k, other.values[k])
	}
	return out
}

// SectionKey lower-cases a heading and replaces spaces with underscores.
func SectionKey(heading string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(heading)), " ", "_")
}

// headingLevel returns the number of leading '#' when line is an ATX heading.
func headingLevel(line string) int {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	if n == 0 || n > 6 || n >= len(line) || line[n] != ' ' {
		return 0
	}
	return n
}

// ExtractSections collects the bodies of headings at exactly level. Deeper
// headings stay inside the current body; a shallower heading closes it.
// Lines inside fenced code blocks are never treated as headings.
func ExtractSections(body string, level int) *Sections {
	out := newSections()
	var (
		current string
		open    bool
		buf     []string
		inFence bool
	)
	flush := func() {
		if open {
			out.set(current, strings.TrimSpace(strings.Join(buf, "\n")))
		}
		open = false
		buf = buf[:0]
	}

	for _, line := range strings.Split(normalizeNewlines(body), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
		}
		lvl := 0
		if !inFence {
			lvl = headingLevel(line)
		}
		switch {
		case lvl == level:
			flush()
			current = SectionKey(line[level+1:])
			open = true
		case lvl > 0 && lvl < level:
			flush()
		case open:
			buf = append(buf, line)
		}
	}
	flush()
	return out
}

// ExtractFiles returns file paths mentioned in text, in order of appearance
// per line. Duplicates are kept.
func ExtractFiles(text string) []string {
	files := []string{}
	for _, line := range strings.Split(normalizeNewlines(text), "\n") {
		for _, m := range codeSpanFilePattern.FindAllStringSubmatch(line, -1) {
			files = append(files, m[1])
		}
		for _, m := range fileLabelPattern.FindAllStringSubmatch(line, -1) {
			files = append(files, m[1])
		}
	}
	return files
}
