// CLAUDE:SUMMARY Append-only CSV result log with a header written once per file.
package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/eriflow/run"
)

// DefaultLogName returns eri_results_YYYYMMDD_HHMMSS.csv for t.
func DefaultLogName(t time.Time) string {
	return "eri_results_" + t.Format("20060102_150405") + ".csv"
}

// CSVLog appends result rows to a CSV file. The header is written when
// the file is created or empty.
type CSVLog struct {
	path string
}

// NewCSVLog returns a log writing to path. Nothing is created until the
// first Append.
func NewCSVLog(path string) *CSVLog {
	return &CSVLog{path: path}
}

// Path returns the file path.
func (l *CSVLog) Path() string { return l.path }

// Append encodes rows in memory and writes them with a single call so a
// failed write does not leave a partial batch behind the header.
func (l *CSVLog) Append(_ context.Context, rows []run.ExtractedResult) error {
	if len(rows) == 0 {
		return nil
	}
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("sink: csv log dir: %w", err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("sink: open csv log: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("sink: stat csv log: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if st.Size() == 0 {
		w.Write(Header)
	}
	for _, r := range rows {
		w.Write(Row(r))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("sink: encode csv: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("sink: write csv log: %w", err)
	}
	return nil
}

func (l *CSVLog) Close() error { return nil }

// ReadLog reads a result log (or any CSV table) into header and rows.
func ReadLog(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("sink: open %s: %w", path, err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("sink: read %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil, nil
	}
	return all[0], all[1:], nil
}

// WriteTable writes header and rows to path, replacing it.
func WriteTable(path string, header []string, rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write(header)
	w.WriteAll(rows)
	if err := w.Error(); err != nil {
		return fmt.Errorf("sink: encode csv: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("sink: write %s: %w", path, err)
	}
	return nil
}
