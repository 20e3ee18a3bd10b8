// CLAUDE:SUMMARY Run journal: writes batch lifecycle and every record outcome (including step failures) to the store.
package sink

import (
	"context"
	"time"

	"github.com/hazyhaar/eriflow/idgen"
	"github.com/hazyhaar/eriflow/run"
	"github.com/hazyhaar/eriflow/store"
)

// Journal records outcomes in the SQLite store. Unlike the result sinks
// it also keeps step failures, with the failing step and reason.
type Journal struct {
	st    *store.Store
	newID idgen.Generator
}

// NewJournal wraps st. A nil gen uses idgen.Run.
func NewJournal(st *store.Store, gen idgen.Generator) *Journal {
	if gen == nil {
		gen = idgen.Run
	}
	return &Journal{st: st, newID: gen}
}

// Begin opens a batch of total records.
func (j *Journal) Begin(ctx context.Context, batchID string, total int, at time.Time) error {
	return j.st.BeginBatch(ctx, store.Batch{ID: batchID, StartedAt: at, Total: total})
}

// Auth records the session outcome of a batch.
func (j *Journal) Auth(ctx context.Context, batchID string, ok bool, strategy string) error {
	return j.st.SetAuth(ctx, batchID, ok, strategy)
}

// Outcome records the outcome of one record.
func (j *Journal) Outcome(ctx context.Context, rc run.RunContext, o run.Outcome, finishedAt time.Time) error {
	rec := rc.Record
	e := store.Entry{
		RunID:      j.newID(),
		BatchID:    rc.BatchID,
		Index:      rc.Index,
		Code:       rec.Code,
		Location:   rec.Location,
		Revenue:    rec.Revenue,
		Industry:   rec.Industry,
		Experience: rec.ExperienceLabel(),
		Statistic:  rec.Statistic.String(),
		Variant:    rc.Variant.String(),
		Kind:       o.Kind.String(),
		Step:       o.Step,
		Reason:     o.Reason,
		StartedAt:  rc.StartedAt,
		FinishedAt: finishedAt,
	}
	if o.Result != nil {
		e.Value = o.Result.Value
	}
	return j.st.RecordOutcome(ctx, e)
}

// Finish closes a batch with status.
func (j *Journal) Finish(ctx context.Context, batchID, status string, at time.Time) error {
	return j.st.FinishBatch(ctx, batchID, status, at)
}
