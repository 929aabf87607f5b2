package parser

import (
	"strings"

	"github.com/continuity-tools/artifact-index/internal/artifact"
)

const defaultSnapshotReason = "manual"

// ParseContinuity parses a CONTINUITY_CLAUDE-<session>.md ledger.
//
// The "## State" section is read line by line: [x] lines are done, [->] or
// "now:" lines are the current step and [ ] or "next:" lines the next one.
// For now and next the last matching line wins.
func ParseContinuity(path string, content []byte) (*artifact.Continuity, error) {
	fm, body := ParseFrontmatter(string(content))
	sections := ExtractSections(body, 2)

	done := []string{}
	var stateNow, stateNext string
	for _, line := range strings.Split(sections.Get("state"), "\n") {
		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "[x]"):
			done = append(done, strings.TrimSpace(line))
		case strings.Contains(line, "[->]") || strings.Contains(lower, "now:"):
			stateNow = strings.TrimSpace(line)
		case strings.Contains(line, "[ ]") || strings.Contains(lower, "next:"):
			stateNext = strings.TrimSpace(line)
		}
	}

	reason := fm["snapshot_reason"]
	if reason == "" {
		reason = defaultSnapshotReason
	}

	return &artifact.Continuity{
		ID:             artifact.ID(path),
		SessionName:    artifact.ContinuitySession(path),
		FilePath:       path,
		Goal:           artifact.Truncate(sections.Get("goal"), artifact.MaxGoalLen),
		StateDone:      done,
		StateNow:       stateNow,
		StateNext:      stateNext,
		KeyLearnings:   sections.First("key_learnings", "key_learnings_(this_session)"),
		KeyDecisions:   sections.Get("key_decisions"),
		SnapshotReason: reason,
	}, nil
}
