package parser

import (
	"strings"

	"github.com/continuity-tools/artifact-index/internal/artifact"
)

// ParsePlan parses a plan document. Phases are the level-2 sections whose
// key starts with "phase_", in document order.
func ParsePlan(path string, content []byte) (*artifact.Plan, error) {
	_, body := ParseFrontmatter(string(content))

	title := artifact.Stem(path)
	if m := titlePattern.FindStringSubmatch(body); m != nil {
		title = m[1]
	}

	sections := ExtractSections(body, 2)
	phases := []artifact.Phase{}
	for _, key := range sections.Keys() {
		if strings.HasPrefix(key, "phase_") {
			phases = append(phases, artifact.Phase{
				Name:    key,
				Content: artifact.Truncate(sections.Get(key), artifact.MaxPhaseLen),
			})
		}
	}

	return &artifact.Plan{
		ID:          artifact.ID(path),
		Title:       title,
		FilePath:    path,
		Overview:    artifact.Truncate(sections.Get("overview"), artifact.MaxOverviewLen),
		Approach:    artifact.Truncate(sections.First("implementation_approach", "approach"), artifact.MaxApproachLen),
		Phases:      phases,
		Constraints: sections.First("what_we're_not_doing", "constraints"),
	}, nil
}
