package parser

import (
	"time"

	"github.com/continuity-tools/artifact-index/internal/artifact"
)

// now is replaced in tests.
var now = time.Now

// handoffBase fills the path-derived fields shared by both dialects.
func handoffBase(path string) *artifact.Handoff {
	name, uuid := artifact.SessionFromPath(path)
	return &artifact.Handoff{
		ID:          artifact.ID(path),
		SessionName: name,
		SessionUUID: uuid,
		TaskNumber:  artifact.TaskNumber(path),
		FilePath:    path,
	}
}

func createdAt(date string) string {
	if date != "" {
		return date
	}
	return now().Format(time.RFC3339)
}

// ParseHandoffMarkdown parses a markdown handoff. path must be absolute.
//
// Level-2 and level-3 sections are both read; a "### Key Decisions" inside
// a broader "## Summary" overrides a same-named level-2 section.
func ParseHandoffMarkdown(path string, content []byte) (*artifact.Handoff, error) {
	fm, body := ParseFrontmatter(string(content))
	sections := ExtractSections(body, 2).Merge(ExtractSections(body, 3))

	h := handoffBase(path)
	h.TaskSummary = artifact.Truncate(sections.First("what_was_done", "summary"), artifact.MaxSummaryLen)
	h.WhatWorked = sections.Get("what_worked")
	h.WhatFailed = sections.Get("what_failed")
	h.KeyDecisions = sections.First("key_decisions", "decisions")
	h.FilesModified = ExtractFiles(sections.Get("files_modified"))
	h.Outcome = artifact.NormalizeOutcome(fm["status"])
	h.RootSpanID = fm["root_span_id"]
	h.TurnSpanID = fm["turn_span_id"]
	h.SessionID = fm["session_id"]
	h.BraintrustSessionID = fm["braintrust_session_id"]
	h.CreatedAt = createdAt(fm["date"])
	return h, nil
}
