// CLAUDE:SUMMARY Builds the ordered form-filling steps for a record and runs them with a readiness checkpoint after each.
// Package sequence drives the assessor form for one record. The full
// sequence starts from the landing page; the abbreviated one skips the
// initial navigation and reuses the form already on screen.
package sequence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/eriflow/browser"
	"github.com/hazyhaar/eriflow/interact"
	"github.com/hazyhaar/eriflow/locator"
	"github.com/hazyhaar/eriflow/record"
	"github.com/hazyhaar/eriflow/run"
)

// ReasonUnstable is the failure reason of a readiness checkpoint timeout.
const ReasonUnstable = "ui not stable"

// FullOrder lists step names of the full sequence.
var FullOrder = []string{
	locator.Navigate,
	locator.OpenForm,
	locator.OpenCodeDropdown,
	locator.SelectCodeType,
	locator.TypeCode,
	locator.ConfirmCode,
	locator.TypeLocation,
	locator.TypeIndustry,
	locator.TypeRevenue,
}

// Order returns the step names of v.
func Order(v run.Variant) []string {
	if v == run.Abbreviated {
		return FullOrder[1:]
	}
	return FullOrder
}

// Capturer saves diagnostics for a failed step.
type Capturer interface {
	Capture(ctx context.Context, page browser.Page, label string) error
}

// Config configures a Sequencer.
type Config struct {
	Locators *locator.Table
	Timing   interact.Timing
	// OrdinalDowns is passed through to the executor.
	OrdinalDowns int

	// CodeOption is the dropdown entry chosen by select_code_type.
	CodeOption string

	// Settle is the DOM-stability window per step name. Steps not listed
	// use StableWindow.
	Settle       map[string]time.Duration
	StableWindow time.Duration
	// ReadyTimeout bounds each readiness checkpoint.
	ReadyTimeout time.Duration

	Diag   Capturer
	Logger *slog.Logger
}

// DefaultSettle returns the per-step stability windows.
func DefaultSettle() map[string]time.Duration {
	return map[string]time.Duration{
		locator.OpenForm:    2 * time.Second,
		locator.ConfirmCode: time.Second,
		locator.TypeRevenue: time.Second,
	}
}

func (c *Config) defaults() {
	if c.Locators == nil {
		c.Locators = locator.Default()
	}
	if c.CodeOption == "" {
		c.CodeOption = "ERI Code"
	}
	if c.StableWindow <= 0 {
		c.StableWindow = 500 * time.Millisecond
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 20 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Sequencer runs step sequences.
type Sequencer struct {
	cfg Config
}

// New returns a Sequencer.
func New(cfg Config) *Sequencer {
	cfg.defaults()
	return &Sequencer{cfg: cfg}
}

// Steps builds the concrete steps of variant v for rec.
func (s *Sequencer) Steps(rec record.InputRecord, v run.Variant) []interact.Step {
	settle := func(name string) time.Duration {
		if d, ok := s.cfg.Settle[name]; ok && d > 0 {
			return d
		}
		return s.cfg.StableWindow
	}
	mk := func(name string, kind interact.Kind, value string) interact.Step {
		st := interact.Step{Name: name, Locator: name, Kind: kind, Value: value, Settle: settle(name)}
		if kind == interact.KeyboardSelect {
			st.Locator = ""
			st.Option = s.cfg.CodeOption
		}
		return st
	}

	all := map[string]interact.Step{
		locator.Navigate:         mk(locator.Navigate, interact.Click, ""),
		locator.OpenForm:         mk(locator.OpenForm, interact.Click, ""),
		locator.OpenCodeDropdown: mk(locator.OpenCodeDropdown, interact.Click, ""),
		locator.SelectCodeType:   mk(locator.SelectCodeType, interact.KeyboardSelect, ""),
		locator.TypeCode:         mk(locator.TypeCode, interact.Type, rec.Code),
		locator.ConfirmCode:      mk(locator.ConfirmCode, interact.Click, ""),
		locator.TypeLocation:     mk(locator.TypeLocation, interact.TypeAndSubmit, rec.Location),
		locator.TypeIndustry:     mk(locator.TypeIndustry, interact.TypeAndSubmit, rec.Industry),
		locator.TypeRevenue:      mk(locator.TypeRevenue, interact.TypeAndSubmit, rec.RevenueDisplay()),
	}

	order := Order(v)
	steps := make([]interact.Step, len(order))
	for i, name := range order {
		steps[i] = all[name]
	}
	return steps
}

// Run performs the steps of rc.Variant for rc.Record. It returns a zero
// Outcome of kind Success with a nil Result when every step passed; the
// caller then runs extraction. The first failing step aborts the sequence.
func (s *Sequencer) Run(ctx context.Context, rc run.RunContext) run.Outcome {
	log := rc.Log().With("variant", rc.Variant.String())
	exec := interact.New(rc.Page, interact.Config{
		Locators:     s.cfg.Locators,
		Timing:       s.cfg.Timing,
		OrdinalDowns: s.cfg.OrdinalDowns,
		Logger:       log,
	})

	for _, step := range s.Steps(rc.Record, rc.Variant) {
		start := time.Now()
		res := exec.Perform(ctx, step)
		if res.OK {
			res = s.checkpoint(ctx, rc.Page, step.Settle)
		}
		if !res.OK {
			log.Warn("sequence: step failed", "step", step.Name, "reason", res.Reason)
			s.capture(ctx, rc, step.Name)
			return run.FailedStep(step.Name, res.Reason)
		}
		log.Debug("sequence: step done", "step", step.Name, "elapsed", time.Since(start))
	}
	return run.Outcome{Kind: run.Success}
}

// checkpoint waits for the DOM to be stable for window, bounded by
// ReadyTimeout.
func (s *Sequencer) checkpoint(ctx context.Context, page browser.Page, window time.Duration) interact.Result {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.ReadyTimeout)
	defer cancel()
	if err := page.WaitStable(cctx, window); err != nil {
		if ctx.Err() != nil {
			return interact.Result{Reason: ctx.Err().Error()}
		}
		return interact.Result{Reason: ReasonUnstable}
	}
	return interact.Result{OK: true}
}

func (s *Sequencer) capture(ctx context.Context, rc run.RunContext, step string) {
	if s.cfg.Diag == nil {
		return
	}
	// The batch context may already be cancelled; diagnostics get their own budget.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	label := fmt.Sprintf("%s_%03d_%s", rc.BatchID, rc.Index+1, step)
	if err := s.cfg.Diag.Capture(cctx, rc.Page, label); err != nil {
		rc.Log().Warn("sequence: diagnostics capture failed", "step", step, "error", err)
	}
}
