package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/eriflow/dbopen"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(dbopen.OpenMemory(t, dbopen.WithSchema(Schema)))
}

func entry(batch string, idx int, code, kind, value string, at time.Time) Entry {
	return Entry{
		RunID: batch + "-" + string(rune('a'+idx)), BatchID: batch, Index: idx,
		Code: code, Location: "Dallas, TX", Revenue: 1000000, Industry: "Retail",
		Experience: "5", Statistic: "Mean", Variant: "full", Kind: kind, Value: value,
		StartedAt: at, FinishedAt: at.Add(time.Second),
	}
}

func TestBatchLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.BeginBatch(ctx, Batch{ID: "b1", StartedAt: t0, Total: 3}))
	require.NoError(t, s.SetAuth(ctx, "b1", true, "cookies"))
	for _, e := range []Entry{
		entry("b1", 0, "100", "success", "420", t0),
		entry("b1", 1, "200", "step_failure", "", t0),
		entry("b1", 2, "300", "extraction_failure", "Not found", t0),
	} {
		require.NoError(t, s.RecordOutcome(ctx, e))
	}
	require.NoError(t, s.FinishBatch(ctx, "b1", StatusDone, t0.Add(time.Minute)))

	b, err := s.Batch(ctx, "b1")
	require.NoError(t, err)
	require.Equal(t, StatusDone, b.Status)
	require.True(t, b.Authenticated)
	require.Equal(t, "cookies", b.AuthStrategy)
	require.Equal(t, 1, b.Succeeded)
	require.Equal(t, 2, b.Failed)
	require.True(t, b.StartedAt.Equal(t0), "started: %v", b.StartedAt)
	require.True(t, b.FinishedAt.Equal(t0.Add(time.Minute)), "finished: %v", b.FinishedAt)

	out, err := s.Outcomes(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, "420", out[0].Value)
	require.Equal(t, "extraction_failure", out[2].Kind)
}

func TestRecordOutcome_ReplacesSameIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t0 := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, s.BeginBatch(ctx, Batch{ID: "b", StartedAt: t0, Total: 1}))
	require.NoError(t, s.RecordOutcome(ctx, entry("b", 0, "100", "step_failure", "", t0)))
	second := entry("b", 0, "100", "success", "500", t0)
	second.RunID = "b-retry"
	require.NoError(t, s.RecordOutcome(ctx, second))

	out, err := s.Outcomes(ctx, "b")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "500", out[0].Value)
}

func TestLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new"} {
		at := t0.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.BeginBatch(ctx, Batch{ID: id, StartedAt: at, Total: 1}))
		require.NoError(t, s.RecordOutcome(ctx, entry(id, 0, "100", "success", id+"-value", at)))
	}
	other := entry("new", 1, "100", "success", "median", t0)
	other.Statistic = "Median"
	require.NoError(t, s.RecordOutcome(ctx, other))

	got, err := s.Lookup(ctx, Query{Code: "100", Statistic: "Mean"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "new-value", got[0].Value)

	all, err := s.Lookup(ctx, Query{Code: "100"})
	require.NoError(t, err)
	require.Len(t, all, 3)

	batches, err := s.Batches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	require.Equal(t, "new", batches[0].ID)
}

func TestBatch_NotFound(t *testing.T) {
	_, err := newTestStore(t).Batch(context.Background(), "missing")
	require.True(t, errors.Is(err, ErrNotFound), "err: %v", err)
}
