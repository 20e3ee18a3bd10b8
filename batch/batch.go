// CLAUDE:SUMMARY Batch runner: one session per batch, full then abbreviated sequences, per-record outcomes, incremental result sinks, abort between records.
// Package batch drives a list of input records through the step sequencer
// and the result extractor over a single authenticated browser session.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/eriflow/browser"
	"github.com/hazyhaar/eriflow/idgen"
	"github.com/hazyhaar/eriflow/locator"
	"github.com/hazyhaar/eriflow/record"
	"github.com/hazyhaar/eriflow/run"
	"github.com/hazyhaar/eriflow/session"
	"github.com/hazyhaar/eriflow/store"
)

// Sessions acquires the batch session. *session.Manager implements it.
type Sessions interface {
	Acquire(ctx context.Context, credentialStorePath string) (*session.Session, bool, error)
	WaitManual(ctx context.Context, sess *session.Session, d time.Duration, credentialStorePath string) bool
}

// Sequencer runs the form steps. *sequence.Sequencer implements it.
type Sequencer interface {
	Run(ctx context.Context, rc run.RunContext) run.Outcome
}

// Extractor reads the result. *extract.Extractor implements it.
type Extractor interface {
	Extract(ctx context.Context, rc run.RunContext) run.Outcome
}

// Results receives extracted results. *sink.Router implements it.
type Results interface {
	Append(ctx context.Context, rows []run.ExtractedResult) error
	Flush(ctx context.Context) error
	Pending() int
}

// Journal records the batch lifecycle. *sink.Journal implements it.
type Journal interface {
	Begin(ctx context.Context, batchID string, total int, at time.Time) error
	Auth(ctx context.Context, batchID string, ok bool, strategy string) error
	Outcome(ctx context.Context, rc run.RunContext, o run.Outcome, finishedAt time.Time) error
	Finish(ctx context.Context, batchID, status string, at time.Time) error
}

// Config configures a Runner. Sessions, Sequencer and Extractor are
// required.
type Config struct {
	Sessions  Sessions
	Sequencer Sequencer
	Extractor Extractor
	Results   Results
	Journal   Journal
	Locators  *locator.Table

	// RequireAuth stops the batch when no strategy authenticated.
	RequireAuth bool
	// ManualLoginWait gives an operator time to log in by hand after
	// every strategy failed. Zero skips the wait.
	ManualLoginWait time.Duration
	// KeepSession leaves the session open and hands it back in the
	// report instead of closing it.
	KeepSession bool

	ResetTimeout time.Duration
	FlushTimeout time.Duration

	NewBatchID idgen.Generator
	Now        func() time.Time
	Logger     *slog.Logger
}

func (c *Config) defaults() {
	if c.Locators == nil {
		c.Locators = locator.Default()
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 5 * time.Second
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = 30 * time.Second
	}
	if c.NewBatchID == nil {
		c.NewBatchID = idgen.Batch
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// RecordOutcome is the outcome of one record of a batch.
type RecordOutcome struct {
	Index   int
	Record  record.InputRecord
	Variant run.Variant
	Outcome run.Outcome
}

// Report summarises a batch.
type Report struct {
	BatchID       string
	Authenticated bool
	AuthStrategy  string
	// Outcomes holds one entry per processed record, in input order.
	Outcomes []RecordOutcome
	// Results holds the Success and ExtractionFailure results in arrival
	// order, whether or not the sinks accepted them.
	Results []run.ExtractedResult
	// Pending counts results the sinks have not accepted yet.
	Pending int
	// Session is set when Config.KeepSession is true.
	Session *session.Session
}

// Succeeded counts Success outcomes.
func (r Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Outcome.Kind == run.Success {
			n++
		}
	}
	return n
}

// Failed counts StepFailure and ExtractionFailure outcomes.
func (r Report) Failed() int { return len(r.Outcomes) - r.Succeeded() }

// Runner runs batches. One batch runs at a time.
type Runner struct {
	cfg Config
	mu  sync.Mutex
}

// New returns a Runner.
func New(cfg Config) *Runner {
	cfg.defaults()
	return &Runner{cfg: cfg}
}

// RunBatch processes records in order over one session. Step and
// extraction failures are recorded and the batch continues. It returns
// run.ErrAborted when ctx ends between or during records (the in-flight
// record is dropped), run.ErrAuthentication when RequireAuth is set and
// no strategy succeeded, and run.ErrIO when the final flush of the result
// sinks fails. The report is valid in every case.
func (r *Runner) RunBatch(ctx context.Context, records []record.InputRecord, credentialStorePath string) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, rec := range records {
		if err := rec.Validate(); err != nil && !errors.Is(err, record.ErrExperienceRequired) {
			return Report{}, fmt.Errorf("batch: record %d: %w", i+1, err)
		}
	}

	rep := Report{BatchID: r.cfg.NewBatchID()}
	log := r.cfg.Logger.With("batch", rep.BatchID)
	if len(records) == 0 {
		return rep, nil
	}

	r.journal(log, "begin", func(ctx context.Context) error {
		return r.cfg.Journal.Begin(ctx, rep.BatchID, len(records), r.cfg.Now())
	})
	status := store.StatusFailed
	defer func() {
		r.journal(log, "finish", func(ctx context.Context) error {
			return r.cfg.Journal.Finish(ctx, rep.BatchID, status, r.cfg.Now())
		})
	}()

	sess, ok, err := r.cfg.Sessions.Acquire(ctx, credentialStorePath)
	if err != nil {
		if sess != nil {
			sess.Close()
		}
		if ctx.Err() != nil {
			status = store.StatusAborted
			return rep, fmt.Errorf("batch: acquire session: %w", run.ErrAborted)
		}
		return rep, fmt.Errorf("batch: acquire session: %w", err)
	}
	if r.cfg.KeepSession {
		rep.Session = sess
	} else {
		defer sess.Close()
	}

	if !ok && r.cfg.ManualLoginWait > 0 {
		ok = r.cfg.Sessions.WaitManual(ctx, sess, r.cfg.ManualLoginWait, credentialStorePath)
	}
	rep.Authenticated, rep.AuthStrategy = ok, sess.Strategy()
	r.journal(log, "auth", func(ctx context.Context) error {
		return r.cfg.Journal.Auth(ctx, rep.BatchID, ok, rep.AuthStrategy)
	})
	if !ok {
		log.Error("batch: session not authenticated", "error", run.ErrAuthentication)
		if r.cfg.RequireAuth {
			return rep, fmt.Errorf("batch: %w", run.ErrAuthentication)
		}
	}

	aborted := false
	positioned := false
	for i, rec := range records {
		if ctx.Err() != nil {
			aborted = true
			break
		}

		variant := run.Full
		if positioned {
			variant = run.Abbreviated
			r.reset(ctx, sess.Page, log)
		}
		rc := run.RunContext{
			BatchID:   rep.BatchID,
			Index:     i,
			Record:    rec,
			Variant:   variant,
			Page:      sess.Page,
			StartedAt: r.cfg.Now(),
			Logger:    r.cfg.Logger,
		}

		out, ran := r.process(ctx, rc)
		if ctx.Err() != nil {
			rc.Log().Warn("batch: aborted, dropping in-flight record")
			aborted = true
			break
		}
		if ran && variant == run.Full && !(out.Kind == run.StepFailure && out.Step == locator.Navigate) {
			positioned = true
		}

		rep.Outcomes = append(rep.Outcomes, RecordOutcome{Index: i, Record: rec, Variant: variant, Outcome: out})
		r.journal(log, "outcome", func(ctx context.Context) error {
			return r.cfg.Journal.Outcome(ctx, rc, out, r.cfg.Now())
		})
		rc.Log().Info("batch: record done", "variant", variant.String(), "kind", out.Kind.String(),
			"value", out.Value(), "step", out.Step, "reason", out.Reason)

		if out.Result != nil {
			rep.Results = append(rep.Results, *out.Result)
			if r.cfg.Results != nil {
				if err := r.cfg.Results.Append(ctx, []run.ExtractedResult{*out.Result}); err != nil {
					log.Warn("batch: result append failed, kept for flush", "error", err)
				}
			}
		}
	}

	ioErr := r.flush(ctx, log)
	if r.cfg.Results != nil {
		rep.Pending = r.cfg.Results.Pending()
	}

	log.Info("batch: done", "records", len(rep.Outcomes), "succeeded", rep.Succeeded(),
		"failed", rep.Failed(), "aborted", aborted, "pending", rep.Pending)

	switch {
	case aborted:
		status = store.StatusAborted
		if ioErr != nil {
			return rep, errors.Join(fmt.Errorf("batch: %w", run.ErrAborted), ioErr)
		}
		return rep, fmt.Errorf("batch: %w", run.ErrAborted)
	case ioErr != nil:
		return rep, ioErr
	}
	status = store.StatusDone
	return rep, nil
}

// process runs one record. ran is false when the sequence was skipped.
func (r *Runner) process(ctx context.Context, rc run.RunContext) (out run.Outcome, ran bool) {
	defer func() {
		if p := recover(); p != nil {
			rc.Log().Error("batch: record panic", "panic", p)
			out = run.FailedStep("", fmt.Sprintf("panic: %v", p))
		}
	}()

	// Nothing to read without years of experience; skip the form.
	if errors.Is(rc.Record.Validate(), record.ErrExperienceRequired) {
		return r.cfg.Extractor.Extract(ctx, rc), false
	}
	out = r.cfg.Sequencer.Run(ctx, rc)
	if out.Kind != run.Success {
		return out, true
	}
	return r.cfg.Extractor.Extract(ctx, rc), true
}

// reset clears transient page state before an abbreviated run: scroll to
// top, click the page body, dismiss overlays with Escape.
func (r *Runner) reset(ctx context.Context, page browser.Page, log *slog.Logger) {
	rctx, cancel := context.WithTimeout(ctx, r.cfg.ResetTimeout)
	defer cancel()

	if err := page.Exec(rctx, "() => window.scrollTo(0, 0)"); err != nil {
		log.Debug("batch: reset scroll", "error", err)
	}
	if sel, err := r.cfg.Locators.Get(locator.Body); err == nil {
		if el, err := page.Find(rctx, sel); err == nil {
			if err := el.Click(rctx); err != nil {
				log.Debug("batch: reset click", "error", err)
			}
		}
	}
	if err := page.Press(rctx, browser.KeyEscape); err != nil {
		log.Debug("batch: reset escape", "error", err)
	}
}

func (r *Runner) flush(ctx context.Context, log *slog.Logger) error {
	if r.cfg.Results == nil {
		return nil
	}
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.FlushTimeout)
	defer cancel()
	if err := r.cfg.Results.Flush(fctx); err != nil {
		log.Error("batch: flush failed", "pending", r.cfg.Results.Pending(), "error", err)
		return fmt.Errorf("batch: flush: %w: %w", run.ErrIO, err)
	}
	return nil
}

// journal runs fn against the journal if one is configured. Journal
// errors are logged, never fatal.
func (r *Runner) journal(log *slog.Logger, op string, fn func(context.Context) error) {
	if r.cfg.Journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Warn("batch: journal write failed", "op", op, "error", err)
	}
}
