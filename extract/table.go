// CLAUDE:SUMMARY Results-table readers: a goquery snapshot of the table HTML and a live per-cell XPath reader.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/eriflow/browser"
	"github.com/hazyhaar/eriflow/locator"
)

// ErrNoRow is returned by a Table when the requested row does not exist.
var ErrNoRow = errors.New("extract: no such row")

// Table reads cells of the results table. Rows and columns are 1-based.
type Table interface {
	Cell(ctx context.Context, row, col int) (string, error)
}

// SnapshotTable is a parsed copy of the results table taken once.
type SnapshotTable struct {
	rows [][]string
}

// Snapshot reads the outer HTML of the results table and parses it.
func Snapshot(ctx context.Context, page browser.Page, locs *locator.Table) (*SnapshotTable, error) {
	sel, err := locs.Get(locator.ResultsTable)
	if err != nil {
		return nil, err
	}
	el, err := page.Find(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("extract: results table: %w", err)
	}
	raw, err := el.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract: results table html: %w", err)
	}
	return ParseTable(raw)
}

// ParseTable parses table markup. Data rows are the tbody rows when a tbody
// is present, otherwise every tr that holds td cells. Columns count td
// cells only, as the result_cell template does; row-header th cells are
// skipped.
func ParseTable(markup string) (*SnapshotTable, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("extract: parse table: %w", err)
	}
	trs := doc.Find("tbody > tr")
	if trs.Length() == 0 {
		trs = doc.Find("tr").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.ChildrenFiltered("td").Length() > 0
		})
	}

	t := &SnapshotTable{}
	trs.Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.ChildrenFiltered("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, cellText(td.Text()))
		})
		t.rows = append(t.rows, cells)
	})
	return t, nil
}

// Len returns the number of data rows.
func (t *SnapshotTable) Len() int { return len(t.rows) }

func (t *SnapshotTable) Cell(_ context.Context, row, col int) (string, error) {
	if row < 1 || row > len(t.rows) {
		return "", ErrNoRow
	}
	cells := t.rows[row-1]
	if col < 1 || col > len(cells) {
		return "", fmt.Errorf("extract: row %d has %d cells, want column %d", row, len(cells), col)
	}
	return cells[col-1], nil
}

// LiveTable reads each cell from the live page through the result_cell
// template.
type LiveTable struct {
	page browser.Page
	locs *locator.Table
}

// Live returns a LiveTable over page.
func Live(page browser.Page, locs *locator.Table) *LiveTable {
	return &LiveTable{page: page, locs: locs}
}

func (t *LiveTable) Cell(ctx context.Context, row, col int) (string, error) {
	sel, err := t.locs.Cell(row, col)
	if err != nil {
		return "", err
	}
	els, err := t.page.FindAll(ctx, sel)
	if err != nil {
		return "", err
	}
	if len(els) == 0 {
		if col == 1 {
			return "", ErrNoRow
		}
		return "", fmt.Errorf("extract: row %d column %d: %w", row, col, browser.ErrNotFound)
	}
	text, err := els[0].Text(ctx)
	if err != nil {
		return "", err
	}
	return cellText(text), nil
}

// cellText collapses whitespace runs and trims.
func cellText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
