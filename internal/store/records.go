package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/continuity-tools/artifact-index/internal/artifact"
)

const timeLayout = time.RFC3339

func jsonText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func indexedAt(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

// HandoffUpsert maps a handoff onto HandoffColumns.
func HandoffUpsert(h *artifact.Handoff) Upsert {
	files := h.FilesModified
	if files == nil {
		files = []string{}
	}
	return Upsert{
		Table:       "handoffs",
		Columns:     HandoffColumns,
		ConflictKey: "id",
		Values: []any{
			h.ID, h.SessionName, h.SessionUUID, nullableInt(h.TaskNumber), h.FilePath,
			h.TaskSummary, h.WhatWorked, h.WhatFailed, h.KeyDecisions,
			jsonText(files), string(h.Outcome), h.RootSpanID, h.TurnSpanID,
			h.SessionID, h.BraintrustSessionID, h.CreatedAt, indexedAt(h.IndexedAt),
		},
	}
}

// PlanUpsert maps a plan onto PlanColumns.
func PlanUpsert(p *artifact.Plan) Upsert {
	phases := p.Phases
	if phases == nil {
		phases = []artifact.Phase{}
	}
	return Upsert{
		Table:       "plans",
		Columns:     PlanColumns,
		ConflictKey: "id",
		Values: []any{
			p.ID, p.Title, p.FilePath, p.Overview, p.Approach, jsonText(phases),
			p.Constraints, indexedAt(p.IndexedAt),
		},
	}
}

// ContinuityUpsert maps a continuity ledger onto ContinuityColumns.
func ContinuityUpsert(c *artifact.Continuity) Upsert {
	done := c.StateDone
	if done == nil {
		done = []string{}
	}
	return Upsert{
		Table:       "continuity",
		Columns:     ContinuityColumns,
		ConflictKey: "id",
		Values: []any{
			c.ID, c.SessionName, c.FilePath, c.Goal, jsonText(done), c.StateNow,
			c.StateNext, c.KeyLearnings, c.KeyDecisions, c.SnapshotReason,
			indexedAt(c.IndexedAt),
		},
	}
}

// UpsertFor returns the descriptor for any record type.
func UpsertFor(rec artifact.Record) (Upsert, error) {
	switch r := rec.(type) {
	case *artifact.Handoff:
		return HandoffUpsert(r), nil
	case *artifact.Plan:
		return PlanUpsert(r), nil
	case *artifact.Continuity:
		return ContinuityUpsert(r), nil
	}
	return Upsert{}, fmt.Errorf("unsupported record type %T", rec)
}

// Save writes rec through b.Upsert.
func Save(ctx context.Context, b Backend, rec artifact.Record) error {
	u, err := UpsertFor(rec)
	if err != nil {
		return err
	}
	return b.Upsert(ctx, u)
}
