package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hazyhaar/eriflow/batch"
	"github.com/hazyhaar/eriflow/browser"
	"github.com/hazyhaar/eriflow/diag"
	"github.com/hazyhaar/eriflow/extract"
	"github.com/hazyhaar/eriflow/sequence"
	"github.com/hazyhaar/eriflow/session"
	"github.com/hazyhaar/eriflow/sheets"
	"github.com/hazyhaar/eriflow/sink"
	"github.com/hazyhaar/eriflow/store"
)

// stack is the wired automation pipeline of one process.
type stack struct {
	runner  *batch.Runner
	browser *browser.Manager
	router  *sink.Router
	store   *store.Store
	logPath string
}

func (s *stack) Close() error {
	var firstErr error
	if s.router != nil {
		if err := s.router.Close(); err != nil {
			firstErr = err
		}
	}
	if err := s.browser.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type stackOptions struct {
	resultLog   string
	keepSession bool
	requireAuth bool
	manualWait  time.Duration
}

func (a *app) openStore() (*store.Store, error) {
	if a.cfg.Journal.Disabled {
		return nil, fmt.Errorf("journal disabled in configuration")
	}
	return store.Open(a.cfg.Journal.Path)
}

func (a *app) buildStack(ctx context.Context, opts stackOptions) (*stack, error) {
	cfg, log := a.cfg, a.logger
	locs := cfg.LocatorTable()
	st := &stack{browser: browser.NewManager(cfg.BrowserManager(log))}

	var capt sequence.Capturer
	if !cfg.Diag.Disabled {
		c, err := diag.New(diag.Config{Dir: cfg.Diag.Dir, SkipMarkdown: cfg.Diag.SkipMarkdown, Logger: log})
		if err != nil {
			return nil, err
		}
		capt = c
	}

	st.logPath = opts.resultLog
	if st.logPath == "" {
		st.logPath = cfg.Output.ResultLog
	}
	if st.logPath == "" {
		st.logPath = filepath.Join(cfg.Output.Dir, sink.DefaultLogName(time.Now()))
	}
	sinks := []sink.Sink{sink.NewCSVLog(st.logPath)}
	if cfg.Sheets.Push {
		client, err := sheets.New(ctx, sheets.Config{
			SpreadsheetID:   cfg.Sheets.SpreadsheetID,
			Range:           cfg.Sheets.Range,
			CredentialsFile: cfg.Sheets.CredentialsFile,
			Logger:          log,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink.NewSheetsPush(client))
	}
	st.router = sink.NewRouter(log, sinks...)

	bc := batch.Config{
		Sessions:        session.NewManager(st.browser, cfg.SessionManager(locs, log)),
		Sequencer:       sequence.New(cfg.Sequencer(locs, capt, log)),
		Extractor:       extract.New(cfg.Extractor(locs, log)),
		Results:         st.router,
		Locators:        locs,
		RequireAuth:     cfg.Batch.RequireAuth || opts.requireAuth,
		ManualLoginWait: cfg.Session.ManualLoginWait,
		KeepSession:     opts.keepSession,
		Logger:          log,
	}
	if opts.manualWait > 0 {
		bc.ManualLoginWait = opts.manualWait
	}
	if !cfg.Journal.Disabled {
		db, err := store.Open(cfg.Journal.Path)
		if err != nil {
			return nil, err
		}
		st.store = db
		bc.Journal = sink.NewJournal(db, nil)
	}
	st.runner = batch.New(bc)
	return st, nil
}
