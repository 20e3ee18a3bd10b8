// CLAUDE:SUMMARY Pushes the cumulative result table to a Google Sheets range after each append.
package sink

import (
	"context"
	"fmt"

	"github.com/hazyhaar/eriflow/run"
)

// Replacer replaces a remote table. *sheets.Client implements it.
type Replacer interface {
	Replace(ctx context.Context, rows [][]string) error
}

// SheetsPush mirrors the result log into a spreadsheet range. Every
// Append rewrites the whole range with the header and all rows so far;
// rows of a failed push are not kept, the router hands them back.
type SheetsPush struct {
	dst  Replacer
	rows [][]string
}

// NewSheetsPush returns a SheetsPush writing to dst.
func NewSheetsPush(dst Replacer) *SheetsPush {
	return &SheetsPush{dst: dst}
}

func (s *SheetsPush) Append(ctx context.Context, rows []run.ExtractedResult) error {
	table := make([][]string, 0, len(s.rows)+len(rows)+1)
	table = append(table, Header)
	table = append(table, s.rows...)
	for _, r := range rows {
		table = append(table, Row(r))
	}
	if err := s.dst.Replace(ctx, table); err != nil {
		return fmt.Errorf("sink: sheets push: %w", err)
	}
	s.rows = table[1:]
	return nil
}

func (s *SheetsPush) Close() error { return nil }
