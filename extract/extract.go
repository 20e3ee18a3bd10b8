// CLAUDE:SUMMARY Reads the requested statistic from the results view: summary value or first matching experience row.
// Package extract reads the assessor result for a record once the form
// has been submitted.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/eriflow/locator"
	"github.com/hazyhaar/eriflow/record"
	"github.com/hazyhaar/eriflow/run"
)

// Failure reasons.
const (
	ReasonRowNotFound   = "target row not found"
	ReasonNoResults     = "results view not shown"
	ReasonNoSummary     = "summary value not found"
	ReasonNeedsYears    = "years of experience required"
	defaultColumn       = 4
	defaultMaxRows      = 20
	defaultResultsWait  = 30 * time.Second
	defaultSummaryProbe = 5 * time.Second
)

// ColumnMap gives the results-table column read for each statistic.
type ColumnMap map[record.Statistic]int

// DefaultColumns maps Mean to column 4 and 75th Percentile to column 5.
// Other row statistics read column 4.
func DefaultColumns() ColumnMap {
	return ColumnMap{record.Mean: 4, record.Percentile75: 5}
}

// Column returns the column for s.
func (m ColumnMap) Column(s record.Statistic) int {
	if c, ok := m[s]; ok && c > 0 {
		return c
	}
	return defaultColumn
}

// Reader selects the table reader.
type Reader string

const (
	ReaderSnapshot Reader = "snapshot"
	ReaderLive     Reader = "live"
)

// Config configures an Extractor.
type Config struct {
	Locators *locator.Table
	Columns  ColumnMap
	MaxRows  int
	Reader   Reader
	// ResultsWait bounds the wait for the results view.
	ResultsWait time.Duration
	Logger      *slog.Logger
	Now         func() time.Time
}

func (c *Config) defaults() {
	if c.Locators == nil {
		c.Locators = locator.Default()
	}
	if c.Columns == nil {
		c.Columns = DefaultColumns()
	}
	if c.MaxRows <= 0 {
		c.MaxRows = defaultMaxRows
	}
	if c.Reader == "" {
		c.Reader = ReaderSnapshot
	}
	if c.ResultsWait <= 0 {
		c.ResultsWait = defaultResultsWait
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Extractor reads results.
type Extractor struct {
	cfg Config
}

// New returns an Extractor.
func New(cfg Config) *Extractor {
	cfg.defaults()
	return &Extractor{cfg: cfg}
}

// Extract reads the value requested by rc.Record from rc.Page. It returns
// a Success outcome or an ExtractionFailure carrying run.NotFound.
func (x *Extractor) Extract(ctx context.Context, rc run.RunContext) run.Outcome {
	rec := rc.Record
	log := rc.Log().With("statistic", rec.Statistic.String())

	if err := rec.Validate(); errors.Is(err, record.ErrExperienceRequired) {
		log.Warn("extract: missing years of experience")
		return run.FailedExtraction(rec, ReasonNeedsYears, x.cfg.Now())
	}

	if err := x.waitResults(ctx, rc); err != nil {
		log.Warn("extract: results not shown", "error", err)
		return run.FailedExtraction(rec, ReasonNoResults, x.cfg.Now())
	}

	if rec.Statistic == record.AllIncumbentAverage {
		return x.summary(ctx, rc, log)
	}

	table, err := x.table(ctx, rc)
	if err != nil {
		log.Warn("extract: results table unreadable", "error", err)
		return run.FailedExtraction(rec, ReasonRowNotFound, x.cfg.Now())
	}

	v, err := x.Scan(ctx, table, rec.ExperienceKey(), x.cfg.Columns.Column(rec.Statistic), log)
	if err != nil {
		log.Info("extract: no matching row", "years", rec.ExperienceKey())
		return run.FailedExtraction(rec, ReasonRowNotFound, x.cfg.Now())
	}
	log.Info("extract: value read", "value", v)
	return run.Succeeded(rec, v, x.cfg.Now())
}

// Scan walks data rows 1..MaxRows and returns column col of the first row
// whose first cell equals key. A missing row ends the scan; a cell read
// error counts as a miss for that row.
func (x *Extractor) Scan(ctx context.Context, t Table, key string, col int, log *slog.Logger) (string, error) {
	for row := 1; row <= x.cfg.MaxRows; row++ {
		k, err := t.Cell(ctx, row, 1)
		if errors.Is(err, ErrNoRow) {
			break
		}
		if err != nil {
			log.Debug("extract: key cell unreadable", "row", row, "error", err)
			continue
		}
		if k != key {
			continue
		}
		v, err := t.Cell(ctx, row, col)
		if err != nil {
			log.Warn("extract: value cell unreadable", "row", row, "column", col, "error", err)
			continue
		}
		return v, nil
	}
	return "", errors.New(ReasonRowNotFound)
}

func (x *Extractor) waitResults(ctx context.Context, rc run.RunContext) error {
	sel, err := x.cfg.Locators.Get(locator.ResultsView)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, x.cfg.ResultsWait)
	defer cancel()
	_, err = rc.Page.Find(wctx, sel)
	return err
}

func (x *Extractor) summary(ctx context.Context, rc run.RunContext, log *slog.Logger) run.Outcome {
	rec := rc.Record
	sel, err := x.cfg.Locators.Get(locator.SummaryValue)
	if err != nil {
		return run.FailedExtraction(rec, ReasonNoSummary, x.cfg.Now())
	}
	sctx, cancel := context.WithTimeout(ctx, defaultSummaryProbe)
	defer cancel()

	el, err := rc.Page.Find(sctx, sel)
	if err != nil {
		log.Warn("extract: summary value missing", "error", err)
		return run.FailedExtraction(rec, ReasonNoSummary, x.cfg.Now())
	}
	text, err := el.Text(ctx)
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		log.Warn("extract: summary value empty", "error", err)
		return run.FailedExtraction(rec, ReasonNoSummary, x.cfg.Now())
	}
	log.Info("extract: value read", "value", text)
	return run.Succeeded(rec, text, x.cfg.Now())
}

func (x *Extractor) table(ctx context.Context, rc run.RunContext) (Table, error) {
	switch x.cfg.Reader {
	case ReaderLive:
		return Live(rc.Page, x.cfg.Locators), nil
	case ReaderSnapshot:
		sctx, cancel := context.WithTimeout(ctx, defaultSummaryProbe)
		defer cancel()
		return Snapshot(sctx, rc.Page, x.cfg.Locators)
	}
	return nil, fmt.Errorf("extract: unknown reader %q", x.cfg.Reader)
}
