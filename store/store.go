// CLAUDE:SUMMARY SQLite run journal: batches and per-record outcomes, with queries for the CLI, HTTP and MCP surfaces.
// Package store persists batch runs and per-record outcomes in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/eriflow/dbopen"
)

// Schema creates the journal tables. Idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS batches (
	batch_id      TEXT PRIMARY KEY,
	started_at    INTEGER NOT NULL,
	finished_at   INTEGER NOT NULL DEFAULT 0,
	total         INTEGER NOT NULL,
	authenticated INTEGER NOT NULL DEFAULT 0,
	auth_strategy TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'running'
);

CREATE TABLE IF NOT EXISTS outcomes (
	run_id      TEXT PRIMARY KEY,
	batch_id    TEXT NOT NULL REFERENCES batches(batch_id) ON DELETE CASCADE,
	idx         INTEGER NOT NULL,
	code        TEXT NOT NULL,
	location    TEXT NOT NULL,
	revenue     INTEGER NOT NULL,
	industry    TEXT NOT NULL,
	experience  TEXT NOT NULL,
	statistic   TEXT NOT NULL,
	variant     TEXT NOT NULL,
	kind        TEXT NOT NULL,
	step        TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	value       TEXT NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	UNIQUE(batch_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_outcomes_lookup ON outcomes(code, statistic, finished_at);
`

// Batch statuses.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusAborted = "aborted"
	StatusFailed  = "failed"
)

// ErrNotFound is returned when a batch does not exist.
var ErrNotFound = errors.New("store: not found")

// Batch is one batch run.
type Batch struct {
	ID            string    `json:"batch_id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at,omitzero"`
	Total         int       `json:"total"`
	Authenticated bool      `json:"authenticated"`
	AuthStrategy  string    `json:"auth_strategy,omitempty"`
	Status        string    `json:"status"`
	Succeeded     int       `json:"succeeded"`
	Failed        int       `json:"failed"`
}

// Entry is one journaled record outcome.
type Entry struct {
	RunID      string    `json:"run_id"`
	BatchID    string    `json:"batch_id"`
	Index      int       `json:"index"`
	Code       string    `json:"code"`
	Location   string    `json:"location"`
	Revenue    int64     `json:"revenue"`
	Industry   string    `json:"industry"`
	Experience string    `json:"experience"`
	Statistic  string    `json:"statistic"`
	Variant    string    `json:"variant"`
	Kind       string    `json:"kind"`
	Step       string    `json:"step,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Value      string    `json:"value"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Store wraps the journal database.
type Store struct {
	db *sql.DB
}

// New returns a Store over db. The schema must already be applied.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (creating if needed) the journal at path.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return New(db), nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// BeginBatch inserts a running batch.
func (s *Store) BeginBatch(ctx context.Context, b Batch) error {
	_, err := dbopen.Exec(ctx, s.db,
		`INSERT INTO batches (batch_id, started_at, total, authenticated, auth_strategy, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.StartedAt.UnixMilli(), b.Total, b.Authenticated, b.AuthStrategy, StatusRunning)
	if err != nil {
		return fmt.Errorf("store: begin batch: %w", err)
	}
	return nil
}

// SetAuth records the authentication result of a batch.
func (s *Store) SetAuth(ctx context.Context, batchID string, ok bool, strategy string) error {
	_, err := dbopen.Exec(ctx, s.db,
		`UPDATE batches SET authenticated = ?, auth_strategy = ? WHERE batch_id = ?`,
		ok, strategy, batchID)
	if err != nil {
		return fmt.Errorf("store: set auth: %w", err)
	}
	return nil
}

// FinishBatch sets the terminal status of a batch.
func (s *Store) FinishBatch(ctx context.Context, batchID, status string, at time.Time) error {
	_, err := dbopen.Exec(ctx, s.db,
		`UPDATE batches SET status = ?, finished_at = ? WHERE batch_id = ?`,
		status, at.UnixMilli(), batchID)
	if err != nil {
		return fmt.Errorf("store: finish batch: %w", err)
	}
	return nil
}

// RecordOutcome inserts or replaces the outcome at (batch, index).
func (s *Store) RecordOutcome(ctx context.Context, e Entry) error {
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM outcomes WHERE batch_id = ? AND idx = ?`, e.BatchID, e.Index); err != nil {
			return fmt.Errorf("store: record outcome: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO outcomes (run_id, batch_id, idx, code, location, revenue, industry, experience,
			 statistic, variant, kind, step, reason, value, started_at, finished_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.RunID, e.BatchID, e.Index, e.Code, e.Location, e.Revenue, e.Industry, e.Experience,
			e.Statistic, e.Variant, e.Kind, e.Step, e.Reason, e.Value,
			e.StartedAt.UnixMilli(), e.FinishedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("store: record outcome: %w", err)
		}
		return nil
	})
}

const batchColumns = `b.batch_id, b.started_at, b.finished_at, b.total, b.authenticated, b.auth_strategy, b.status,
	(SELECT COUNT(*) FROM outcomes o WHERE o.batch_id = b.batch_id AND o.kind = 'success'),
	(SELECT COUNT(*) FROM outcomes o WHERE o.batch_id = b.batch_id AND o.kind <> 'success')`

func scanBatch(sc interface{ Scan(...any) error }) (Batch, error) {
	var (
		b                 Batch
		started, finished int64
	)
	if err := sc.Scan(&b.ID, &started, &finished, &b.Total, &b.Authenticated, &b.AuthStrategy, &b.Status,
		&b.Succeeded, &b.Failed); err != nil {
		return Batch{}, err
	}
	b.StartedAt = time.UnixMilli(started).UTC()
	if finished > 0 {
		b.FinishedAt = time.UnixMilli(finished).UTC()
	}
	return b, nil
}

// Batch returns one batch.
func (s *Store) Batch(ctx context.Context, id string) (Batch, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM batches b WHERE b.batch_id = ?`, id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Batch{}, ErrNotFound
	}
	if err != nil {
		return Batch{}, fmt.Errorf("store: batch: %w", err)
	}
	return b, nil
}

// Batches lists the most recent batches first.
func (s *Store) Batches(ctx context.Context, limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+batchColumns+` FROM batches b ORDER BY b.started_at DESC, b.batch_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: batches: %w", err)
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("store: batches: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const entryColumns = `run_id, batch_id, idx, code, location, revenue, industry, experience, statistic,
	variant, kind, step, reason, value, started_at, finished_at`

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			e                 Entry
			started, finished int64
		)
		if err := rows.Scan(&e.RunID, &e.BatchID, &e.Index, &e.Code, &e.Location, &e.Revenue, &e.Industry,
			&e.Experience, &e.Statistic, &e.Variant, &e.Kind, &e.Step, &e.Reason, &e.Value,
			&started, &finished); err != nil {
			return nil, err
		}
		e.StartedAt = time.UnixMilli(started).UTC()
		e.FinishedAt = time.UnixMilli(finished).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Outcomes lists the outcomes of a batch in record order.
func (s *Store) Outcomes(ctx context.Context, batchID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM outcomes WHERE batch_id = ? ORDER BY idx`, batchID)
	if err != nil {
		return nil, fmt.Errorf("store: outcomes: %w", err)
	}
	out, err := scanEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("store: outcomes: %w", err)
	}
	return out, nil
}

// Query filters Lookup.
type Query struct {
	Code      string
	Statistic string // empty = any
	Limit     int
}

// Lookup returns journaled outcomes for a job code, newest first.
func (s *Store) Lookup(ctx context.Context, q Query) ([]Entry, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	query := `SELECT ` + entryColumns + ` FROM outcomes WHERE code = ?`
	args := []any{q.Code}
	if q.Statistic != "" {
		query += ` AND statistic = ?`
		args = append(args, q.Statistic)
	}
	query += ` ORDER BY finished_at DESC, idx DESC LIMIT ?`
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: lookup: %w", err)
	}
	out, err := scanEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("store: lookup: %w", err)
	}
	return out, nil
}
