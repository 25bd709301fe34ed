package main

import (
	"time"

	"switchhatch/internal/journal"
	"switchhatch/internal/sequencer"
)

// RunState is the daemon-owned view of the run. The Machine itself stays in
// the daemon loop; RunState only caches what the last tick observed so the
// reducer can answer status requests and decide what to publish.
//
// Status uses the journal outcome names: running, done, stopped, failed.
type RunState struct {
	RunID  string
	Config sequencer.RunConfig
	Status string

	// Snapshot is the machine state after the last delivered tick.
	Snapshot sequencer.Snapshot

	Transitions    int
	LastTransition *sequencer.Transition

	StartedAt  time.Time
	FinishedAt time.Time

	// Err is the fatal error that failed the run, if any.
	Err error

	// Alerting is true while the completion alert is running.
	Alerting bool
}

// NewRunState returns the state for a run that has not ticked yet.
func NewRunState(runID string, cfg sequencer.RunConfig, startedAt time.Time) *RunState {
	return &RunState{
		RunID:     runID,
		Config:    cfg,
		Status:    journal.OutcomeRunning,
		StartedAt: startedAt,
		Snapshot: sequencer.Snapshot{
			Counters: sequencer.Counters{
				ContainersRemaining: cfg.Containers,
				ItemsRemaining:      cfg.InitialItems,
				GroupSelector:       sequencer.MinGroup,
			},
		},
	}
}

// Delivering reports whether the daemon should keep handing reports to the
// transport. A finished run keeps sending neutral reports so the console
// sees a connected, idle pad.
func (s *RunState) Delivering() bool {
	return s.Status == journal.OutcomeRunning || s.Status == journal.OutcomeDone
}

// Finished reports whether the run reached an outcome.
func (s *RunState) Finished() bool {
	return s.Status != journal.OutcomeRunning
}

func (s *RunState) finish(outcome string, at time.Time) {
	s.Status = outcome
	s.FinishedAt = at
}

// StatusSnapshot is the externally visible run status, served over IPC and
// as the status feed's state_init payload.
type StatusSnapshot struct {
	RunID       string             `json:"run_id"`
	Status      string             `json:"status"`
	Species     int                `json:"species"`
	Containers  int                `json:"containers"`
	Policy      string             `json:"policy"`
	Phase       sequencer.Phase    `json:"phase"`
	Counters    sequencer.Counters `json:"counters"`
	Ticks       uint64             `json:"ticks"`
	PhaseTicks  uint64             `json:"phase_ticks"`
	Transitions int                `json:"transitions"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  *time.Time         `json:"finished_at,omitempty"`
	Alerting    bool               `json:"alerting"`
	Error       string             `json:"error,omitempty"`
}

// StatusSnapshot returns a copy of s suitable for other goroutines.
func (s *RunState) StatusSnapshot() StatusSnapshot {
	out := StatusSnapshot{
		RunID:       s.RunID,
		Status:      s.Status,
		Species:     s.Config.Species,
		Containers:  s.Config.Containers,
		Policy:      s.Config.Persist.String(),
		Phase:       s.Snapshot.Phase,
		Counters:    s.Snapshot.Counters,
		Ticks:       s.Snapshot.Ticks,
		PhaseTicks:  s.Snapshot.PhaseTicks,
		Transitions: s.Transitions,
		StartedAt:   s.StartedAt,
		Alerting:    s.Alerting,
	}
	if !s.FinishedAt.IsZero() {
		t := s.FinishedAt
		out.FinishedAt = &t
	}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return out
}
