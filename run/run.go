// CLAUDE:SUMMARY Per-record run context, outcome sum type, extracted result and the error taxonomy shared by all stages.
// Package run holds the values that flow between the sequencer, the
// extractor, the batch runner and the sinks.
package run

import (
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/eriflow/browser"
	"github.com/hazyhaar/eriflow/record"
)

// NotFound is the value recorded when no result could be read.
const NotFound = "Not found"

var (
	ErrAuthentication = errors.New("authentication failed")
	ErrStep           = errors.New("step failed")
	ErrExtraction     = errors.New("extraction failed")
	ErrIO             = errors.New("result sink write failed")
	ErrAborted        = errors.New("batch aborted")
)

// Variant selects the step sequence for a record.
type Variant int

const (
	// Full starts from the landing page.
	Full Variant = iota
	// Abbreviated assumes the form is reachable from the current page.
	Abbreviated
)

func (v Variant) String() string {
	if v == Abbreviated {
		return "abbreviated"
	}
	return "full"
}

// RunContext is the explicit per-record state handed to every stage.
type RunContext struct {
	BatchID   string
	Index     int // 0-based position in the batch
	Record    record.InputRecord
	Variant   Variant
	Page      browser.Page
	StartedAt time.Time
	Logger    *slog.Logger
}

// Log returns the context logger annotated with batch and record fields.
func (rc RunContext) Log() *slog.Logger {
	l := rc.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("batch", rc.BatchID, "index", rc.Index, "code", rc.Record.Code)
}

// ExtractedResult pairs a record with the value read from the page.
type ExtractedResult struct {
	Record     record.InputRecord
	Value      string
	CapturedAt time.Time
}

// Found reports whether a real value was read.
func (r ExtractedResult) Found() bool {
	return r.Value != "" && r.Value != NotFound
}

// Kind discriminates Outcome.
type Kind int

const (
	Success Kind = iota
	StepFailure
	ExtractionFailure
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case StepFailure:
		return "step_failure"
	case ExtractionFailure:
		return "extraction_failure"
	}
	return "unknown"
}

// Outcome is the result of processing one record. Result is set for
// Success and ExtractionFailure; Step only for StepFailure.
type Outcome struct {
	Kind   Kind
	Result *ExtractedResult
	Step   string
	Reason string
}

// Succeeded builds a Success outcome.
func Succeeded(rec record.InputRecord, value string, at time.Time) Outcome {
	return Outcome{Kind: Success, Result: &ExtractedResult{Record: rec, Value: value, CapturedAt: at}}
}

// FailedStep builds a StepFailure outcome.
func FailedStep(step, reason string) Outcome {
	return Outcome{Kind: StepFailure, Step: step, Reason: reason}
}

// FailedExtraction builds an ExtractionFailure carrying the NotFound sentinel.
func FailedExtraction(rec record.InputRecord, reason string, at time.Time) Outcome {
	return Outcome{
		Kind:   ExtractionFailure,
		Result: &ExtractedResult{Record: rec, Value: NotFound, CapturedAt: at},
		Reason: reason,
	}
}

// Err maps a failed outcome onto the error taxonomy. Success returns nil.
func (o Outcome) Err() error {
	switch o.Kind {
	case StepFailure:
		return ErrStep
	case ExtractionFailure:
		return ErrExtraction
	}
	return nil
}

// Value returns the extracted value or NotFound.
func (o Outcome) Value() string {
	if o.Result == nil {
		return NotFound
	}
	return o.Result.Value
}
