package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/continuity-tools/artifact-index/internal/artifact"
	"github.com/continuity-tools/artifact-index/internal/errors"
)

// Detect infers the kind and dialect of a source document from its path.
// Continuity ledgers are recognized by filename prefix wherever they live;
// handoffs and plans by a directory segment named handoffs or plans.
func Detect(path string) (artifact.Kind, artifact.Dialect) {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))

	switch {
	case strings.HasPrefix(base, artifact.ContinuityPrefix) && ext == ".md":
		return artifact.KindContinuity, artifact.DialectMarkdown
	case artifact.HasSegment(path, "handoffs") && ext == ".md":
		return artifact.KindHandoff, artifact.DialectMarkdown
	case artifact.HasSegment(path, "handoffs") && (ext == ".yaml" || ext == ".yml"):
		return artifact.KindHandoff, artifact.DialectYAML
	case artifact.HasSegment(path, "plans") && ext == ".md":
		return artifact.KindPlan, artifact.DialectMarkdown
	}
	return artifact.KindUnknown, ""
}

// Parse detects the document kind from path and dispatches to the matching
// parser.
func Parse(path string, content []byte) (artifact.Record, error) {
	kind, dialect := Detect(path)
	return ParseAs(kind, dialect, path, content)
}

// ParseAs parses content as the given kind, bypassing path detection.
func ParseAs(kind artifact.Kind, dialect artifact.Dialect, path string, content []byte) (artifact.Record, error) {
	var (
		rec artifact.Record
		err error
	)
	switch {
	case kind == artifact.KindHandoff && dialect == artifact.DialectYAML:
		rec, err = record(ParseHandoffYAML(path, content))
	case kind == artifact.KindHandoff:
		rec, err = record(ParseHandoffMarkdown(path, content))
	case kind == artifact.KindPlan:
		rec, err = record(ParsePlan(path, content))
	case kind == artifact.KindContinuity:
		rec, err = record(ParseContinuity(path, content))
	default:
		err = errors.New(errors.ErrCodeUnknownKind, fmt.Sprintf("cannot determine artifact kind of %s", filepath.Base(path)), nil).
			WithDetail("path", path).
			WithSuggestion("handoffs live under a handoffs/ directory, plans under plans/, ledgers are named CONTINUITY_CLAUDE-<session>.md")
	}
	return rec, err
}

// record keeps a nil *T from becoming a non-nil Record.
func record[T artifact.Record](r T, err error) (artifact.Record, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}
