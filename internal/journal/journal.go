// Package journal persists runs and their phase transitions in SQLite.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"switchhatch/internal/sequencer"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	species      INTEGER NOT NULL,
	containers   INTEGER NOT NULL,
	policy       TEXT NOT NULL,
	started_at   TEXT NOT NULL,
	finished_at  TEXT,
	outcome      TEXT NOT NULL DEFAULT 'running'
);

CREATE TABLE IF NOT EXISTS transitions (
	run_id          TEXT NOT NULL,
	seq             INTEGER NOT NULL,
	tick            INTEGER NOT NULL,
	from_phase      TEXT NOT NULL,
	to_phase        TEXT NOT NULL,
	containers      INTEGER NOT NULL,
	items           INTEGER NOT NULL,
	group_selector  INTEGER NOT NULL,
	new_round       INTEGER NOT NULL,
	at              TEXT NOT NULL,
	PRIMARY KEY (run_id, seq),
	FOREIGN KEY (run_id) REFERENCES runs(id)
);
`

// fixed width so that stored timestamps sort as text
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Outcomes recorded by FinishRun.
const (
	OutcomeRunning = "running"
	OutcomeDone    = "done"
	OutcomeStopped = "stopped"
	OutcomeFailed  = "failed"
)

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = errors.New("run not found")

// Run is one row of the runs table.
type Run struct {
	ID         string
	Species    int
	Containers int
	Policy     string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Outcome    string
}

// Entry is one recorded phase transition.
type Entry struct {
	RunID string
	Seq   int
	sequencer.Transition
	At time.Time
}

// Store is a run journal backed by a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the journal at path. ":memory:" gives a private
// in-memory journal.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one connection keeps :memory: databases shared and serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun inserts a new run and returns its id.
func (s *Store) StartRun(ctx context.Context, cfg sequencer.RunConfig) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, species, containers, policy, started_at, outcome)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, cfg.Species, cfg.Containers, cfg.Persist.String(),
		s.now().UTC().Format(timeFormat), OutcomeRunning,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RecordTransition appends tr to the run's transition log.
func (s *Store) RecordTransition(ctx context.Context, runID string, tr sequencer.Transition) error {
	newRound := 0
	if tr.Counters.NewRound {
		newRound = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transitions
		(run_id, seq, tick, from_phase, to_phase, containers, items, group_selector, new_round, at)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ?, ?, ?, ?
		FROM transitions WHERE run_id = ?`,
		runID, tr.Tick, tr.From.String(), tr.To.String(),
		tr.Counters.ContainersRemaining, tr.Counters.ItemsRemaining,
		tr.Counters.GroupSelector, newRound,
		s.now().UTC().Format(timeFormat),
		runID,
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// FinishRun stamps the run with its outcome.
func (s *Store) FinishRun(ctx context.Context, runID, outcome string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, outcome = ? WHERE id = ?`,
		s.now().UTC().Format(timeFormat), outcome, runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, species, containers, policy, started_at, finished_at, outcome
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Species, &r.Containers, &r.Policy, &started, &finished, &r.Outcome); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = time.Parse(timeFormat, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if finished.Valid {
			if r.FinishedAt, err = time.Parse(timeFormat, finished.String); err != nil {
				return nil, fmt.Errorf("parse finished_at: %w", err)
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Transitions returns a run's transitions in the order they happened.
func (s *Store) Transitions(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, tick, from_phase, to_phase, containers, items, group_selector, new_round, at
		FROM transitions WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        = Entry{RunID: runID}
			from, to string
			newRound int
			at       string
		)
		if err := rows.Scan(&e.Seq, &e.Tick, &from, &to,
			&e.Counters.ContainersRemaining, &e.Counters.ItemsRemaining,
			&e.Counters.GroupSelector, &newRound, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		if e.From, err = sequencer.ParsePhase(from); err != nil {
			return nil, err
		}
		if e.To, err = sequencer.ParsePhase(to); err != nil {
			return nil, err
		}
		e.Counters.NewRound = newRound != 0
		if e.At, err = time.Parse(timeFormat, at); err != nil {
			return nil, fmt.Errorf("parse at: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
