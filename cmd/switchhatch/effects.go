package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"switchhatch/internal/sequencer"
)

// journalWriter is the part of the run journal the daemon writes to.
// *journal.Store satisfies it.
type journalWriter interface {
	RecordTransition(ctx context.Context, runID string, tr sequencer.Transition) error
	FinishRun(ctx context.Context, runID, outcome string) error
}

// alerter is the completion alert. Start and Stop must not block.
type alerter interface {
	Start()
	Stop()
}

// effectEnv holds the external systems commands are executed against.
// A nil journal or alert disables that effect.
type effectEnv struct {
	journal journalWriter
	alert   alerter
}

var errUnknownCommand = errors.New("unknown command")

// runEffect executes a single reducer-emitted Command and reports failures
// via onEvent.
//
// Design rules:
// - This function is allowed to perform I/O.
// - It must never call Reduce() directly; it only emits Events to be reduced by the daemon loop.
func runEffect(
	ctx context.Context,
	env effectEnv,
	cmd Command,
	logger *slog.Logger,
	onEvent func(Event),
) {
	if onEvent == nil {
		onEvent = func(Event) {}
	}

	now := time.Now()

	switch c := cmd.(type) {
	case CmdRecordTransition:
		logger.Info("phase transition",
			"from", c.Transition.From.String(),
			"to", c.Transition.To.String(),
			"tick", c.Transition.Tick,
			"containers", c.Transition.Counters.ContainersRemaining,
			"items", c.Transition.Counters.ItemsRemaining,
			"group", c.Transition.Counters.GroupSelector,
		)
		if env.journal == nil {
			return
		}
		if err := env.journal.RecordTransition(ctx, c.RunID, c.Transition); err != nil {
			logger.Error("journal RecordTransition failed", "error", err, "run_id", c.RunID)
			onEvent(CommandFailed{Command: cmd, Err: err, At: now})
		}

	case CmdFinishRun:
		if c.Reason != "" {
			logger.Info("run finished", "run_id", c.RunID, "outcome", c.Outcome, "reason", c.Reason)
		} else {
			logger.Info("run finished", "run_id", c.RunID, "outcome", c.Outcome)
		}
		if env.journal == nil {
			return
		}
		if err := env.journal.FinishRun(ctx, c.RunID, c.Outcome); err != nil {
			logger.Error("journal FinishRun failed", "error", err, "run_id", c.RunID)
			onEvent(CommandFailed{Command: cmd, Err: err, At: now})
		}

	case CmdStartAlert:
		if env.alert != nil {
			env.alert.Start()
		}

	case CmdStopAlert:
		logger.Info("completion alert silenced", "reason", c.Reason)
		if env.alert != nil {
			env.alert.Stop()
		}

	case CmdPublishStatus:
		if c.Reply == nil {
			logger.Warn("status requested with nil reply channel")
			return
		}

		// Never block the daemon loop.
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("status reply channel not ready; dropping snapshot")
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
		onEvent(CommandFailed{Command: cmd, Err: errUnknownCommand, At: now})
	}
}
