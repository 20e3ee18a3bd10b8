package record

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// TableHeader is the header row of the six-column input schema.
var TableHeader = []string{KeyCode, KeyLocation, KeyRevenue, KeyIndustry, KeyExperience, "Requested Type"}

// ReadTableFile opens path and reads it with ReadTable.
func ReadTableFile(path string) ([]InputRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("record: open %s: %w", path, err)
	}
	defer f.Close()
	return ReadTable(f)
}

// ReadTable reads six-column rows {code, location, revenue, industry,
// experience|N/A, statistic}. The delimiter is a tab when the first line
// contains one (a paste from a spreadsheet), a comma otherwise. A leading
// header row, the first non-blank one, is skipped. Revenue thousands
// separators are stripped.
func ReadTable(r io.Reader) ([]InputRecord, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("record: read table: %w", err)
	}
	firstLine, _, _ := bytes.Cut(head, []byte("\n"))

	cr := csv.NewReader(br)
	if bytes.ContainsRune(firstLine, '\t') {
		cr.Comma = '\t'
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	var out []InputRecord
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("record: read table: line %d: %w", line, err)
		}
		if isBlank(row) {
			continue
		}
		if len(out) == 0 && strings.EqualFold(strings.TrimSpace(row[0]), KeyCode) {
			continue
		}
		rec, err := FromRow(row)
		if err != nil {
			return nil, fmt.Errorf("record: read table: line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// FromRow builds a record from one six-column row.
func FromRow(row []string) (InputRecord, error) {
	if len(row) < len(TableHeader) {
		return InputRecord{}, fmt.Errorf("want %d columns, got %d", len(TableHeader), len(row))
	}
	cell := func(i int) string { return strings.TrimSpace(row[i]) }

	rev, err := parseRevenue(cell(2))
	if err != nil {
		return InputRecord{}, err
	}
	st, err := ParseStatistic(cell(5))
	if err != nil {
		return InputRecord{}, err
	}

	rec := InputRecord{
		Code:      cell(0),
		Location:  cell(1),
		Revenue:   rev,
		Industry:  cell(3),
		Statistic: st,
	}
	if y := cell(4); y != "" && y != NotApplicable {
		n, err := strconv.Atoi(y)
		if err != nil || n < 0 {
			return InputRecord{}, fmt.Errorf("invalid years of experience %q", y)
		}
		rec.ExperienceYears = &n
	}
	return rec, nil
}

// Row renders r as the six input columns.
func (r InputRecord) Row() []string {
	return []string{
		r.Code,
		r.Location,
		strconv.FormatInt(r.Revenue, 10),
		r.Industry,
		r.ExperienceLabel(),
		r.Statistic.String(),
	}
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
