// Package artifact defines the canonical records stored by the indexer and
// the path-derived identity rules shared by every document dialect.
package artifact

import "time"

// Kind identifies which table a source document belongs to.
type Kind string

const (
	KindHandoff    Kind = "handoffs"
	KindPlan       Kind = "plans"
	KindContinuity Kind = "continuity"
	KindUnknown    Kind = ""
)

// Dialect distinguishes the two handoff source formats.
type Dialect string

const (
	DialectMarkdown Dialect = "markdown"
	DialectYAML     Dialect = "yaml"
)

// Truncation limits, counted in characters.
const (
	MaxSummaryLen  = 500
	MaxOverviewLen = 1000
	MaxApproachLen = 1000
	MaxPhaseLen    = 500
	MaxGoalLen     = 500
)

// Handoff is the record of one work session's outcome.
type Handoff struct {
	ID            string
	SessionName   string
	SessionUUID   string
	TaskNumber    *int
	FilePath      string
	TaskSummary   string
	WhatWorked    string
	WhatFailed    string
	KeyDecisions  string
	FilesModified []string
	Outcome       Outcome

	RootSpanID          string
	TurnSpanID          string
	SessionID           string
	BraintrustSessionID string

	CreatedAt string
	IndexedAt time.Time
}

// Phase is one "## Phase ..." section of a plan.
type Phase struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Plan is a proposed multi-phase implementation approach.
type Plan struct {
	ID          string
	Title       string
	FilePath    string
	Overview    string
	Approach    string
	Phases      []Phase
	Constraints string
	IndexedAt   time.Time
}

// Continuity is a done/now/next snapshot of in-progress work.
type Continuity struct {
	ID             string
	SessionName    string
	FilePath       string
	Goal           string
	StateDone      []string
	StateNow       string
	StateNext      string
	KeyLearnings   string
	KeyDecisions   string
	SnapshotReason string
	IndexedAt      time.Time
}

// Record is any of the three record types.
type Record interface {
	Kind() Kind
	Path() string
}

func (h *Handoff) Kind() Kind      { return KindHandoff }
func (h *Handoff) Path() string    { return h.FilePath }
func (p *Plan) Kind() Kind         { return KindPlan }
func (p *Plan) Path() string       { return p.FilePath }
func (c *Continuity) Kind() Kind   { return KindContinuity }
func (c *Continuity) Path() string { return c.FilePath }
