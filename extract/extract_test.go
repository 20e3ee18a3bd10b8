package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/eriflow/browser/browsertest"
	"github.com/hazyhaar/eriflow/locator"
	"github.com/hazyhaar/eriflow/record"
	"github.com/hazyhaar/eriflow/run"
)

// rows: years, 25th, median, mean, 75th
var sampleRows = [][]string{
	{"1", "300", "310", "320", "330"},
	{"3", "350", "360", "370", "380"},
	{"5", "400", "410", "420", "430"},
	{"5", "900", "910", "920", "930"},
	{"10", "500", "510", "520", "530"},
}

func tableHTML(rows [][]string) string {
	var b strings.Builder
	b.WriteString("<table><thead><tr><th>Years</th><th>25th</th><th>Median</th><th>Mean</th><th>75th</th></tr></thead><tbody>")
	for _, r := range rows {
		b.WriteString("<tr>")
		for _, c := range r {
			fmt.Fprintf(&b, "<td>\n  %s </td>", c)
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func resultsPage(t *testing.T, rows [][]string) *browsertest.Page {
	t.Helper()
	tab := locator.Default()
	page := browsertest.NewPage("https://online.erieri.com/Assessor")
	view, _ := tab.Get(locator.ResultsView)
	page.Add(view.Expr, &browsertest.Element{})
	tbl, _ := tab.Get(locator.ResultsTable)
	page.Add(tbl.Expr, &browsertest.Element{InnerHTML: tableHTML(rows)})
	for i, r := range rows {
		for j, c := range r {
			cell, err := tab.Cell(i+1, j+1)
			require.NoError(t, err)
			page.Add(cell.Expr, &browsertest.Element{TextValue: " " + c + " "})
		}
	}
	return page
}

func rc(page *browsertest.Page, rec record.InputRecord) run.RunContext {
	return run.RunContext{BatchID: "b", Record: rec, Page: page}
}

func fixedNow() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

func newExtractor(reader Reader) *Extractor {
	return New(Config{Reader: reader, ResultsWait: 20 * time.Millisecond, Now: fixedNow})
}

func TestExtract_MeanRowFive(t *testing.T) {
	for _, reader := range []Reader{ReaderSnapshot, ReaderLive} {
		t.Run(string(reader), func(t *testing.T) {
			rec := record.InputRecord{Code: "1", ExperienceYears: record.Years(5), Statistic: record.Mean}
			out := newExtractor(reader).Extract(context.Background(), rc(resultsPage(t, sampleRows), rec))
			require.Equal(t, run.Success, out.Kind)
			require.Equal(t, "420", out.Value(), "first matching row wins")
			require.Equal(t, fixedNow(), out.Result.CapturedAt)
		})
	}
}

func TestExtract_Percentile75(t *testing.T) {
	rec := record.InputRecord{ExperienceYears: record.Years(10), Statistic: record.Percentile75}
	out := newExtractor(ReaderSnapshot).Extract(context.Background(), rc(resultsPage(t, sampleRows), rec))
	require.Equal(t, "530", out.Value())
}

func TestExtract_MedianUsesDefaultColumn(t *testing.T) {
	rec := record.InputRecord{ExperienceYears: record.Years(3), Statistic: record.Median}
	out := newExtractor(ReaderSnapshot).Extract(context.Background(), rc(resultsPage(t, sampleRows), rec))
	require.Equal(t, "370", out.Value())
}

func TestExtract_RowMissing(t *testing.T) {
	for _, reader := range []Reader{ReaderSnapshot, ReaderLive} {
		t.Run(string(reader), func(t *testing.T) {
			rec := record.InputRecord{ExperienceYears: record.Years(7), Statistic: record.Mean}
			out := newExtractor(reader).Extract(context.Background(), rc(resultsPage(t, sampleRows), rec))
			require.Equal(t, run.ExtractionFailure, out.Kind)
			require.Equal(t, ReasonRowNotFound, out.Reason)
			require.Equal(t, run.NotFound, out.Value())
		})
	}
}

func TestExtract_AllIncumbentAverage(t *testing.T) {
	page := resultsPage(t, sampleRows)
	sum, _ := locator.Default().Get(locator.SummaryValue)
	page.Add(sum.Expr, &browsertest.Element{TextValue: "  $98,765 "})

	rec := record.InputRecord{Statistic: record.AllIncumbentAverage}
	out := newExtractor(ReaderSnapshot).Extract(context.Background(), rc(page, rec))
	require.Equal(t, run.Success, out.Kind)
	require.Equal(t, "$98,765", out.Value())
}

func TestExtract_MissingYears(t *testing.T) {
	rec := record.InputRecord{Statistic: record.Percentile75}
	out := newExtractor(ReaderSnapshot).Extract(context.Background(), rc(browsertest.NewPage(""), rec))
	require.Equal(t, run.ExtractionFailure, out.Kind)
	require.Equal(t, ReasonNeedsYears, out.Reason)
	require.Equal(t, run.NotFound, out.Value())
}

func TestExtract_NoResultsView(t *testing.T) {
	rec := record.InputRecord{ExperienceYears: record.Years(5), Statistic: record.Mean}
	out := newExtractor(ReaderSnapshot).Extract(context.Background(), rc(browsertest.NewPage(""), rec))
	require.Equal(t, run.ExtractionFailure, out.Kind)
	require.Equal(t, ReasonNoResults, out.Reason)
}

type flakyTable struct {
	rows [][]string
	bad  map[[2]int]bool
}

func (f flakyTable) Cell(_ context.Context, row, col int) (string, error) {
	if row > len(f.rows) {
		return "", ErrNoRow
	}
	if f.bad[[2]int{row, col}] {
		return "", errors.New("stale element")
	}
	return f.rows[row-1][col-1], nil
}

func TestScan_CellErrorCountsAsMiss(t *testing.T) {
	x := newExtractor(ReaderSnapshot)
	tbl := flakyTable{rows: sampleRows, bad: map[[2]int]bool{{3, 4}: true}}
	got, err := x.Scan(context.Background(), tbl, "5", 4, slog.Default())
	require.NoError(t, err)
	require.Equal(t, "920", got, "unreadable value cell on row 3 falls through to row 4")
}

func TestScan_StopsAtMaxRows(t *testing.T) {
	var rows [][]string
	for i := 0; i < 25; i++ {
		rows = append(rows, []string{fmt.Sprint(100 + i), "", "", "v", ""})
	}
	rows[21][0] = "5"
	x := newExtractor(ReaderSnapshot)
	_, err := x.Scan(context.Background(), flakyTable{rows: rows}, "5", 4, slog.Default())
	require.Error(t, err, "row 22 is beyond the 20-row scan")
}

func TestReaders_AgreeWithRowHeaderCells(t *testing.T) {
	tab := locator.Default()
	var b strings.Builder
	b.WriteString("<table><tbody>")
	for _, r := range sampleRows {
		fmt.Fprintf(&b, "<tr><th>row %s</th>", r[0])
		for _, c := range r {
			fmt.Fprintf(&b, "<td>%s</td>", c)
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")

	page := resultsPage(t, sampleRows)
	tbl, _ := tab.Get(locator.ResultsTable)
	page.Remove(tbl.Expr)
	page.Add(tbl.Expr, &browsertest.Element{InnerHTML: b.String()})

	snap, err := ParseTable(b.String())
	require.NoError(t, err)
	live := Live(page, tab)
	for _, col := range []int{1, 4, 5} {
		want, err := live.Cell(context.Background(), 3, col)
		require.NoError(t, err)
		got, err := snap.Cell(context.Background(), 3, col)
		require.NoError(t, err)
		require.Equal(t, want, got, "column %d", col)
	}

	rec := record.InputRecord{Code: "1", ExperienceYears: record.Years(5), Statistic: record.Percentile75}
	for _, reader := range []Reader{ReaderSnapshot, ReaderLive} {
		out := newExtractor(reader).Extract(context.Background(), rc(page, rec))
		require.Equal(t, "430", out.Value(), "reader %s", reader)
	}
}

func TestParseTable_NoTbody(t *testing.T) {
	tbl, err := ParseTable(`<table><tr><th>h</th></tr><tr><td> a  b </td><td>c</td></tr></table>`)
	require.NoError(t, err)
	// html parsing inserts an implicit tbody holding both rows.
	v, err := tbl.Cell(context.Background(), tbl.Len(), 1)
	require.NoError(t, err)
	require.Equal(t, "a b", v)
}

func TestColumnMap(t *testing.T) {
	m := DefaultColumns()
	require.Equal(t, 4, m.Column(record.Mean))
	require.Equal(t, 5, m.Column(record.Percentile75))
	require.Equal(t, 4, m.Column(record.Percentile25))
	require.Equal(t, 4, ColumnMap{}.Column(record.Median))
}
