package artifact

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ContinuityPrefix is the filename prefix of continuity ledgers.
const ContinuityPrefix = "CONTINUITY_CLAUDE-"

var (
	sessionUUIDPattern = regexp.MustCompile(`^(.+)-([0-9a-fA-F]{8})$`)
	phasePattern       = regexp.MustCompile(`phase-(\d+)-(\d+)`)
	taskPattern        = regexp.MustCompile(`task-(\d+)`)
)

func segments(p string) []string {
	p = filepath.ToSlash(filepath.Clean(p))
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" && s != "." {
			out = append(out, s)
		}
	}
	return out
}

// HasSegment reports whether any directory segment of p equals name.
// The final element (the file itself) is not considered.
func HasSegment(p, name string) bool {
	segs := segments(p)
	for _, s := range segs[:max(len(segs)-1, 0)] {
		if s == name {
			return true
		}
	}
	return false
}

// SessionFromPath extracts the session name and short UUID from a handoff
// path of the form .../handoffs/<session>[-<8 hex>]/<file>. Paths without a
// session directory under handoffs yield empty strings.
func SessionFromPath(p string) (name, uuid string) {
	segs := segments(p)
	for i, s := range segs {
		if s != "handoffs" {
			continue
		}
		// The segment after handoffs must itself be a directory.
		if i+2 >= len(segs) {
			return "", ""
		}
		raw := segs[i+1]
		if m := sessionUUIDPattern.FindStringSubmatch(raw); m != nil {
			return m[1], strings.ToLower(m[2])
		}
		return raw, ""
	}
	return "", ""
}

// TaskNumber returns the ordinal encoded in a filename: phase-A-B yields
// A*100+B and task-N yields N. Other names yield nil.
func TaskNumber(filename string) *int {
	stem := Stem(filename)
	if m := phasePattern.FindStringSubmatch(stem); m != nil {
		major, err1 := strconv.Atoi(m[1])
		minor, err2 := strconv.Atoi(m[2])
		if err1 == nil && err2 == nil {
			n := major*100 + minor
			return &n
		}
	}
	if m := taskPattern.FindStringSubmatch(stem); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return &n
		}
	}
	return nil
}

// ContinuitySession returns the session named by a CONTINUITY_CLAUDE-<s>.md
// filename, or the file stem.
func ContinuitySession(filename string) string {
	base := filepath.Base(filename)
	if strings.HasPrefix(base, ContinuityPrefix) && strings.HasSuffix(base, ".md") {
		if s := strings.TrimSuffix(strings.TrimPrefix(base, ContinuityPrefix), ".md"); s != "" {
			return s
		}
	}
	return Stem(base)
}

// Stem is the base name without its final extension.
func Stem(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
