// CLAUDE:SUMMARY Performs one verified UI step (click, keyboard select, type+submit) with wait, scroll, fallback click and field clearing.
// Package interact executes single workflow steps against a browser page.
// Every failure is reported as a Result with a reason; nothing panics out.
package interact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/eriflow/browser"
	"github.com/hazyhaar/eriflow/locator"
)

// Kind is the interaction performed by a step.
type Kind int

const (
	Click Kind = iota
	// KeyboardSelect picks a dropdown option that is already open.
	KeyboardSelect
	TypeAndSubmit
	// Type fills a field without pressing the confirm key.
	Type
)

func (k Kind) String() string {
	switch k {
	case Click:
		return "click"
	case KeyboardSelect:
		return "keyboard_select"
	case TypeAndSubmit:
		return "type_and_submit"
	case Type:
		return "type"
	}
	return "unknown"
}

// Step is one named interaction. Locator is a locator table key; it may be
// empty for KeyboardSelect, which acts on the focused dropdown.
type Step struct {
	Name    string
	Locator string
	Kind    Kind
	Value   string // text for Type/TypeAndSubmit
	Option  string // visible option text for KeyboardSelect
	Settle  time.Duration
}

// Result reports whether a step succeeded.
type Result struct {
	OK     bool
	Reason string
}

func fail(format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

// Timing holds the pauses between low-level actions. Zero values mean no
// pause, except ElementTimeout and OptionTimeout which get defaults.
type Timing struct {
	ElementTimeout time.Duration `yaml:"element_timeout"`
	OptionTimeout  time.Duration `yaml:"option_timeout"`
	ScrollSettle   time.Duration `yaml:"scroll_settle"`
	AfterClick     time.Duration `yaml:"after_click"`
	KeyInterval    time.Duration `yaml:"key_interval"`
	AfterSelect    time.Duration `yaml:"after_select"`
	ClearInterval  time.Duration `yaml:"clear_interval"`
	TypeInterval   time.Duration `yaml:"type_interval"`
	AfterSubmit    time.Duration `yaml:"after_submit"`
}

// DefaultTiming returns the pauses the assessor UI needs in practice.
func DefaultTiming() Timing {
	return Timing{
		ElementTimeout: 15 * time.Second,
		OptionTimeout:  2 * time.Second,
		ScrollSettle:   500 * time.Millisecond,
		AfterClick:     2 * time.Second,
		KeyInterval:    500 * time.Millisecond,
		AfterSelect:    2 * time.Second,
		ClearInterval:  100 * time.Millisecond,
		TypeInterval:   50 * time.Millisecond,
		AfterSubmit:    time.Second,
	}
}

// Config configures an Executor.
type Config struct {
	Locators *locator.Table
	Timing   Timing
	// OrdinalDowns is the number of ArrowDown presses of the ordinal
	// dropdown fallback. Default 3 ("ERI Code" is the fourth option).
	OrdinalDowns int
	Logger       *slog.Logger
}

func (c *Config) defaults() {
	if c.Locators == nil {
		c.Locators = locator.Default()
	}
	if c.Timing.ElementTimeout <= 0 {
		c.Timing.ElementTimeout = 15 * time.Second
	}
	if c.Timing.OptionTimeout <= 0 {
		c.Timing.OptionTimeout = 2 * time.Second
	}
	if c.OrdinalDowns <= 0 {
		c.OrdinalDowns = 3
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Executor performs steps on one page.
type Executor struct {
	page browser.Page
	cfg  Config
}

// New returns an Executor bound to page.
func New(page browser.Page, cfg Config) *Executor {
	cfg.defaults()
	return &Executor{page: page, cfg: cfg}
}

// Perform executes step and reports the outcome. A panic in the driver is
// recovered into a failed Result.
func (e *Executor) Perform(ctx context.Context, step Step) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = fail("panic: %v", r)
		}
	}()

	log := e.cfg.Logger.With("step", step.Name, "kind", step.Kind.String())
	log.Debug("interact: perform")

	switch step.Kind {
	case Click:
		res = e.click(ctx, step)
	case KeyboardSelect:
		res = e.keyboardSelect(ctx, step)
	case TypeAndSubmit, Type:
		res = e.typeText(ctx, step)
	default:
		res = fail("unknown step kind %d", step.Kind)
	}

	if !res.OK {
		log.Warn("interact: step failed", "reason", res.Reason)
	}
	return res
}

// locate waits for the step element to be present and interactable, then
// scrolls it into view.
func (e *Executor) locate(ctx context.Context, key string) (browser.Element, Result) {
	sel, err := e.cfg.Locators.Get(key)
	if err != nil {
		return nil, fail("%v", err)
	}

	wctx, cancel := context.WithTimeout(ctx, e.cfg.Timing.ElementTimeout)
	defer cancel()

	el, err := e.page.Find(wctx, sel)
	if err == nil {
		err = el.WaitInteractable(wctx)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, fail("%v", ctx.Err())
		}
		return nil, fail("not found in time")
	}

	if err := el.ScrollIntoView(ctx); err != nil {
		return nil, fail("scroll into view: %v", err)
	}
	if err := sleep(ctx, e.cfg.Timing.ScrollSettle); err != nil {
		return nil, fail("%v", err)
	}
	return el, Result{OK: true}
}

// press clicks el, falling back to a script click when the element cannot
// take a real pointer event.
func (e *Executor) press(ctx context.Context, el browser.Element) error {
	err := el.Click(ctx)
	if errors.Is(err, browser.ErrNotInteractable) {
		e.cfg.Logger.Debug("interact: direct click refused, using script click")
		err = el.ClickScript(ctx)
	}
	return err
}

func (e *Executor) click(ctx context.Context, step Step) Result {
	el, res := e.locate(ctx, step.Locator)
	if !res.OK {
		return res
	}
	if err := e.press(ctx, el); err != nil {
		return fail("click: %v", err)
	}
	if err := sleep(ctx, e.cfg.Timing.AfterClick); err != nil {
		return fail("%v", err)
	}
	return Result{OK: true}
}

func (e *Executor) keyboardSelect(ctx context.Context, step Step) Result {
	if step.Locator != "" {
		el, res := e.locate(ctx, step.Locator)
		if !res.OK {
			return res
		}
		if err := e.press(ctx, el); err != nil {
			return fail("open dropdown: %v", err)
		}
	}

	if step.Option != "" && e.selectByText(ctx, step.Option) {
		if err := sleep(ctx, e.cfg.Timing.AfterSelect); err != nil {
			return fail("%v", err)
		}
		return Result{OK: true}
	}

	// Ordinal fallback: only correct while the option order is stable.
	for i := 0; i < e.cfg.OrdinalDowns; i++ {
		if err := e.page.Press(ctx, browser.KeyArrowDown); err != nil {
			return fail("arrow down: %v", err)
		}
		if err := sleep(ctx, e.cfg.Timing.KeyInterval); err != nil {
			return fail("%v", err)
		}
	}
	if err := e.page.Press(ctx, browser.KeyEnter); err != nil {
		return fail("enter: %v", err)
	}
	if err := sleep(ctx, e.cfg.Timing.AfterSelect); err != nil {
		return fail("%v", err)
	}
	return Result{OK: true}
}

// selectByText clicks the visible option labelled text. It reports false
// when no such option shows up within OptionTimeout.
func (e *Executor) selectByText(ctx context.Context, text string) bool {
	sel, err := e.cfg.Locators.Option(text)
	if err != nil {
		return false
	}
	octx, cancel := context.WithTimeout(ctx, e.cfg.Timing.OptionTimeout)
	defer cancel()

	if _, err := e.page.Find(octx, sel); err != nil {
		e.cfg.Logger.Debug("interact: option not found by text, using ordinal selection", "option", text)
		return false
	}
	el, ok := browser.FirstVisible(octx, e.page, sel)
	if !ok {
		return false
	}
	if err := e.press(ctx, el); err != nil {
		e.cfg.Logger.Debug("interact: option click failed", "option", text, "error", err)
		return false
	}
	return true
}

func (e *Executor) typeText(ctx context.Context, step Step) Result {
	e.dismissOverlay(ctx)

	el, res := e.locate(ctx, step.Locator)
	if !res.OK {
		return res
	}
	if err := e.press(ctx, el); err != nil {
		return fail("focus field: %v", err)
	}
	if err := e.clear(ctx, el); err != nil {
		return fail("clear field: %v", err)
	}

	for _, r := range step.Value {
		if err := e.page.InsertText(ctx, string(r)); err != nil {
			return fail("type: %v", err)
		}
		if err := sleep(ctx, e.cfg.Timing.TypeInterval); err != nil {
			return fail("%v", err)
		}
	}

	if step.Kind == TypeAndSubmit {
		if err := e.page.Press(ctx, browser.KeyEnter); err != nil {
			return fail("submit: %v", err)
		}
	}
	if err := sleep(ctx, e.cfg.Timing.AfterSubmit); err != nil {
		return fail("%v", err)
	}
	return Result{OK: true}
}

// clear empties a focused field: select-all + Delete, then Backspace for
// whatever survived plus a margin of five.
func (e *Executor) clear(ctx context.Context, el browser.Element) error {
	if err := e.page.SelectAll(ctx); err != nil {
		return err
	}
	if err := e.page.Press(ctx, browser.KeyDelete); err != nil {
		return err
	}
	v, err := el.Value(ctx)
	if err != nil || v == "" {
		return nil
	}
	for i := 0; i < len([]rune(v))+5; i++ {
		if err := e.page.Press(ctx, browser.KeyBackspace); err != nil {
			return err
		}
		if err := sleep(ctx, e.cfg.Timing.ClearInterval); err != nil {
			return err
		}
	}
	return nil
}

// dismissOverlay hides the modal mask if it is displayed. Best-effort.
func (e *Executor) dismissOverlay(ctx context.Context) {
	sel, err := e.cfg.Locators.Get(locator.Overlay)
	if err != nil {
		return
	}
	if _, ok := browser.FirstVisible(ctx, e.page, sel); !ok {
		return
	}
	e.cfg.Logger.Debug("interact: hiding overlay", "selector", sel.String())
	if err := e.page.Exec(ctx, HideScript(sel)); err != nil {
		e.cfg.Logger.Debug("interact: hide overlay failed", "error", err)
		return
	}
	_ = sleep(ctx, e.cfg.Timing.AfterSubmit)
}

// HideScript returns a JS function expression that sets display:none on
// every element matching sel.
func HideScript(sel browser.Selector) string {
	if sel.Kind == browser.XPath {
		return fmt.Sprintf(`() => { const r = document.evaluate(%q, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null); for (let i = 0; i < r.snapshotLength; i++) r.snapshotItem(i).style.display = 'none'; }`, sel.Expr)
	}
	return fmt.Sprintf(`() => { document.querySelectorAll(%q).forEach(e => e.style.display = 'none'); }`, sel.Expr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
