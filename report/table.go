// CLAUDE:SUMMARY Terminal tables (go-pretty) for batch reports, journaled batches and outcomes.
// Package report renders journaled runs for humans (terminal tables) and
// programs (read-only HTTP API).
package report

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/hazyhaar/eriflow/batch"
	"github.com/hazyhaar/eriflow/store"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

// Run renders the per-record outcomes of a finished batch.
func Run(w io.Writer, rep batch.Report) {
	t := newTable(w)
	t.SetTitle("batch " + rep.BatchID)
	t.AppendHeader(table.Row{"#", "ERI Code", "Output", "Variant", "Result", "Value", "Step", "Reason"})
	for _, o := range rep.Outcomes {
		t.AppendRow(table.Row{
			o.Index + 1, o.Record.Code, o.Record.Statistic.String(), o.Variant.String(),
			o.Outcome.Kind.String(), o.Outcome.Value(), o.Outcome.Step, o.Outcome.Reason,
		})
	}
	auth := "no"
	if rep.Authenticated {
		auth = "yes (" + rep.AuthStrategy + ")"
	}
	t.SetCaption("authenticated: %s, succeeded: %d, failed: %d, pending: %d",
		auth, rep.Succeeded(), rep.Failed(), rep.Pending)
	t.Render()
}

// Batches renders journaled batches.
func Batches(w io.Writer, bs []store.Batch) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Batch", "Started", "Status", "Total", "Succeeded", "Failed", "Auth"})
	for _, b := range bs {
		t.AppendRow(table.Row{b.ID, stamp(b.StartedAt), b.Status, b.Total, b.Succeeded, b.Failed, b.AuthStrategy})
	}
	t.Render()
}

// Outcomes renders journaled outcomes.
func Outcomes(w io.Writer, es []store.Entry) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Batch", "#", "ERI Code", "Location", "Years", "Output", "Result", "Value", "Step", "Finished"})
	for _, e := range es {
		t.AppendRow(table.Row{
			e.BatchID, e.Index + 1, e.Code, e.Location, e.Experience, e.Statistic,
			e.Kind, e.Value, e.Step, stamp(e.FinishedAt),
		})
	}
	t.Render()
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
