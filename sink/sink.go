// CLAUDE:SUMMARY Result sink interface and the fan-out router that keeps unwritten rows per sink for the next flush.
// Package sink delivers extracted results to output backends: the CSV
// result log, a Google Sheets range, and the SQLite run journal.
package sink

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hazyhaar/eriflow/run"
)

// Header is the result log header row.
var Header = []string{
	"ERI Job Code", "ERI Location", "Revenue", "Industry",
	"Years of Experience", "Output", "Extracted Value",
}

// Row renders a result as a result log row.
func Row(r run.ExtractedResult) []string {
	return append(r.Record.Row(), r.Value)
}

// Sink appends results. An error means none of rows is durable and the
// same rows may be passed again.
type Sink interface {
	Append(ctx context.Context, rows []run.ExtractedResult) error
	Close() error
}

// Router fans results out to every sink. Rows a sink failed to take stay
// queued for that sink only and are retried ahead of new rows, so one
// failing sink neither blocks nor duplicates rows in the others.
type Router struct {
	mu      sync.Mutex
	sinks   []Sink
	pending [][]run.ExtractedResult
	logger  *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, pending: make([][]run.ExtractedResult, len(sinks)), logger: logger}
}

// Append queues rows for every sink and flushes. It returns the first
// sink error.
func (r *Router) Append(ctx context.Context, rows []run.ExtractedResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.pending {
		r.pending[i] = append(r.pending[i], rows...)
	}
	return r.flushLocked(ctx)
}

// Flush retries queued rows.
func (r *Router) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked(ctx)
}

// Pending returns the largest per-sink backlog.
func (r *Router) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.pending {
		n = max(n, len(p))
	}
	return n
}

func (r *Router) flushLocked(ctx context.Context) error {
	var firstErr error
	for i, s := range r.sinks {
		if len(r.pending[i]) == 0 {
			continue
		}
		if err := s.Append(ctx, r.pending[i]); err != nil {
			r.logger.Warn("sink: append failed, rows kept for retry", "sink", i, "pending", len(r.pending[i]), "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		r.pending[i] = nil
	}
	return firstErr
}

// Close closes every sink.
func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
