package main

import (
	"fmt"
	"time"

	"switchhatch/internal/journal"
	"switchhatch/internal/sequencer"
)

// This file implements the reducer-style building blocks of the daemon:
//
//   - Commands: side effects requested by the reducer (journal writes, alert, status replies)
//   - Broadcasts: status feed messages requested by the reducer
//   - Reduce(): computes next state + commands + broadcasts, without performing I/O
//
// The Machine is ticked by the daemon loop; its results reach the reducer as
// TickObserved events.

// ==============================
// Commands (side effects)
// ==============================

// Command represents an external side effect to be executed by the daemon loop.
type Command interface {
	commandMarker()
	String() string
}

// CmdRecordTransition appends a phase transition to the run journal.
type CmdRecordTransition struct {
	RunID      string
	Transition sequencer.Transition
}

func (CmdRecordTransition) commandMarker() {}
func (c CmdRecordTransition) String() string {
	return fmt.Sprintf("CmdRecordTransition(%s -> %s, tick=%d)", c.Transition.From, c.Transition.To, c.Transition.Tick)
}

// CmdFinishRun stamps the run's outcome in the journal. Reason is set for
// stopped runs.
type CmdFinishRun struct {
	RunID   string
	Outcome string
	Reason  string
}

func (CmdFinishRun) commandMarker() {}
func (c CmdFinishRun) String() string {
	if c.Reason != "" {
		return fmt.Sprintf("CmdFinishRun(outcome=%s, reason=%s)", c.Outcome, c.Reason)
	}
	return fmt.Sprintf("CmdFinishRun(outcome=%s)", c.Outcome)
}

// CmdStartAlert starts the completion alert.
type CmdStartAlert struct{}

func (CmdStartAlert) commandMarker() {}
func (CmdStartAlert) String() string { return "CmdStartAlert()" }

// CmdStopAlert silences the completion alert.
type CmdStopAlert struct {
	Reason string
}

func (CmdStopAlert) commandMarker()   {}
func (c CmdStopAlert) String() string { return fmt.Sprintf("CmdStopAlert(reason=%s)", c.Reason) }

// CmdPublishStatus delivers a snapshot to a RequestStatus caller.
type CmdPublishStatus struct {
	Reply    chan StatusSnapshot
	Snapshot StatusSnapshot
}

func (CmdPublishStatus) commandMarker() {}
func (CmdPublishStatus) String() string { return "CmdPublishStatus()" }

// ==============================
// Broadcasts (status feed)
// ==============================

// StateBroadcast is a reducer-emitted message for status feed clients.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastPhaseChanged is emitted on every phase transition.
type BroadcastPhaseChanged struct {
	Transition sequencer.Transition
	At         time.Time
}

func (BroadcastPhaseChanged) broadcastMarker() {}

// BroadcastProgress is emitted on every delivered tick. The broadcaster
// coalesces these latest-wins.
type BroadcastProgress struct {
	Snapshot sequencer.Snapshot
	At       time.Time
}

func (BroadcastProgress) broadcastMarker() {}

// BroadcastRunFinished is emitted once, when the run reaches an outcome.
type BroadcastRunFinished struct {
	Status StatusSnapshot
	At     time.Time
}

func (BroadcastRunFinished) broadcastMarker() {}

// ==============================
// Reducer input/output
// ==============================

// ReduceResult is the output of Reduce(): next state plus the Commands to
// execute and the Broadcasts to publish.
type ReduceResult struct {
	State      *RunState
	Commands   []Command
	Broadcasts []StateBroadcast
}

// Reduce is the pure reducer:
//
// Rules:
// - Must not perform I/O
// - Must not block
// - Must not read the clock; times come from the events
func Reduce(s *RunState, e Event) ReduceResult {
	if s == nil {
		s = &RunState{Status: journal.OutcomeRunning}
	}

	var (
		cmds []Command
		bcs  []StateBroadcast
	)

	finish := func(outcome string, at time.Time) {
		s.finish(outcome, at)
		cmds = append(cmds, CmdFinishRun{RunID: s.RunID, Outcome: outcome})
		bcs = append(bcs, BroadcastRunFinished{Status: s.StatusSnapshot(), At: at})
	}

	switch ev := e.(type) {
	case TimedEvent:
		return reduceControl(s, ev.Event, ev.At)

	case RequestStatus, StopRun:
		return reduceControl(s, ev, time.Time{})

	case TickObserved:
		if !s.Delivering() {
			break
		}
		s.Snapshot = ev.Snapshot
		bcs = append(bcs, BroadcastProgress{Snapshot: ev.Snapshot, At: ev.At})

		tr := ev.Result.Transition
		if tr == nil {
			break
		}
		trCopy := *tr
		s.Transitions++
		s.LastTransition = &trCopy
		cmds = append(cmds, CmdRecordTransition{RunID: s.RunID, Transition: trCopy})
		bcs = append(bcs, BroadcastPhaseChanged{Transition: trCopy, At: ev.At})

		if trCopy.To == sequencer.PhaseDone && s.Status == journal.OutcomeRunning {
			finish(journal.OutcomeDone, ev.At)
			s.Alerting = true
			cmds = append(cmds, CmdStartAlert{})
		}

	case TickFailed:
		if s.Finished() {
			break
		}
		s.Snapshot = ev.Snapshot
		s.Err = ev.Err
		finish(journal.OutcomeFailed, ev.At)

	case TransportFailed:
		if !s.Delivering() {
			break
		}
		s.Err = fmt.Errorf("transport: %w", ev.Err)
		if s.Status == journal.OutcomeRunning {
			finish(journal.OutcomeFailed, ev.At)
			break
		}
		// The run already finished; only delivery of idle reports stops.
		s.Status = journal.OutcomeStopped

	case CommandFailed:
		// Journal and alert failures do not affect the run.
		_ = ev

	default:
		// Unknown event type: no-op.
	}

	return ReduceResult{
		State:      s,
		Commands:   cmds,
		Broadcasts: bcs,
	}
}

func reduceControl(s *RunState, e Event, at time.Time) ReduceResult {
	var (
		cmds []Command
		bcs  []StateBroadcast
	)

	switch ev := e.(type) {
	case RequestStatus:
		cmds = append(cmds, CmdPublishStatus{Reply: ev.Reply, Snapshot: s.StatusSnapshot()})

	case StopRun:
		switch s.Status {
		case journal.OutcomeRunning:
			s.finish(journal.OutcomeStopped, at)
			cmds = append(cmds, CmdFinishRun{RunID: s.RunID, Outcome: journal.OutcomeStopped, Reason: ev.Reason})
			bcs = append(bcs, BroadcastRunFinished{Status: s.StatusSnapshot(), At: at})

		case journal.OutcomeDone:
			// The outcome stays done; delivery and the alert stop.
			s.Status = journal.OutcomeStopped
			if s.Alerting {
				s.Alerting = false
				cmds = append(cmds, CmdStopAlert{Reason: ev.Reason})
			}
		}

	default:
		// no-op
	}

	return ReduceResult{
		State:      s,
		Commands:   cmds,
		Broadcasts: bcs,
	}
}
