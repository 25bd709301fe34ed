package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"switchhatch/internal/journal"
	"switchhatch/internal/sequencer"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// Design rules enforced here:
//   - The daemon goroutine is the only owner of the Machine and the RunState.
//   - Each transport Ready signal is answered with exactly one Tick and one Send.
//   - The reducer performs no I/O; commands are executed by runEffect here.
//   - Broadcasts are handed to the status feed without ever blocking.
//
// ============================================================================

// runDaemon drives one run:
//   - Ticks the machine once per transport Ready signal and sends the report
//   - Receives control Events (status, stop) from IPC and the status feed
//   - Reduces tick observations and control events into (state, commands, broadcasts)
//   - Executes commands and publishes broadcasts
//
// Shutdown semantics:
//   - Returns nil when ctx is canceled or the events channel is closed
//   - Returns nil once a stop request has been applied
//   - Returns the fatal error when the run failed (machine or transport)
//
// A finished run keeps answering Ready with neutral reports until stopped.
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	m *sequencer.Machine,
	tr Transport,
	state *RunState,
	env effectEnv,
	broadcasts chan<- StateBroadcast,
	logger *slog.Logger,
) error {
	if state == nil || m == nil || tr == nil {
		return errors.New("daemon: missing state, machine or transport")
	}

	var eventQueue []Event
	var cmdQueue []Command

	enqueueEvent := func(ev Event) {
		eventQueue = append(eventQueue, ev)
	}

	publish := func(bcs []StateBroadcast) {
		if broadcasts == nil {
			return
		}
		for _, b := range bcs {
			select {
			case broadcasts <- b:
			default:
				logger.Debug("broadcast queue full, dropping", "type", broadcastName(b))
			}
		}
	}

	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			rr := Reduce(state, ev)
			if rr.State != nil {
				state = rr.State
			}
			cmdQueue = append(cmdQueue, rr.Commands...)
			publish(rr.Broadcasts)
		}
	}

	flushCommands := func() {
		for len(cmdQueue) > 0 {
			cmd := cmdQueue[0]
			cmdQueue = cmdQueue[1:]

			runEffect(ctx, env, cmd, logger, enqueueEvent)
			flushEvents()
		}
	}

	step := func() {
		flushEvents()
		flushCommands()
	}

	buf := make([]byte, 0, sequencer.ReportSize)
	transportErr := tr.Err()

	logger.Info("run starting",
		"run_id", state.RunID,
		"species", state.Config.Species,
		"containers", state.Config.Containers,
		"persist", state.Config.Persist.String(),
	)

	for {
		switch state.Status {
		case journal.OutcomeFailed:
			logger.Error("run failed", "run_id", state.RunID, "error", state.Err)
			return state.Err
		case journal.OutcomeStopped:
			logger.Info("daemon stopping (run stopped)", "run_id", state.RunID)
			return nil
		}

		var ready <-chan struct{}
		if state.Delivering() {
			ready = tr.Ready()
		}

		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			if !state.Finished() {
				enqueueEvent(TimedEvent{Event: StopRun{Reason: "shutdown"}, At: time.Now()})
				// Journal writes must outlive the canceled context.
				ctx = context.WithoutCancel(ctx)
				step()
			}
			return nil

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return nil
			}
			enqueueEvent(TimedEvent{Event: ev, At: time.Now()})
			step()

		case err := <-transportErr:
			transportErr = nil
			enqueueEvent(TransportFailed{Err: err, At: time.Now()})
			step()

		case <-ready:
			res, tickErr := m.Tick()
			now := time.Now()

			// A failed tick still yields a neutral report; send it so the
			// console sees every button released.
			buf = res.Report.AppendBinary(buf[:0])
			sendErr := tr.Send(buf)

			switch {
			case tickErr != nil:
				enqueueEvent(TickFailed{Err: tickErr, Snapshot: m.Snapshot(), At: now})
			case sendErr != nil:
				enqueueEvent(TransportFailed{Err: sendErr, At: now})
			default:
				enqueueEvent(TickObserved{Result: res, Snapshot: m.Snapshot(), At: now})
			}
			step()
		}
	}
}

func broadcastName(b StateBroadcast) string {
	switch b.(type) {
	case BroadcastPhaseChanged:
		return "phase_changed"
	case BroadcastProgress:
		return "progress"
	case BroadcastRunFinished:
		return "run_finished"
	default:
		return "unknown"
	}
}
