package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestRunEffect_FinishRunLogsStopReason(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	j := &fakeJournal{}

	runEffect(context.Background(), effectEnv{journal: j}, CmdFinishRun{
		RunID:   "run-1",
		Outcome: "stopped",
		Reason:  "ctl",
	}, logger, nil)

	out := buf.String()
	for _, want := range []string{`msg="run finished"`, "outcome=stopped", "reason=ctl"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log %q missing %q", out, want)
		}
	}
	if _, got := j.snapshot(); len(got) != 1 || got[0] != "stopped" {
		t.Fatalf("journal outcomes = %v", got)
	}
}

func TestRunEffect_FinishRunWithoutReason(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	runEffect(context.Background(), effectEnv{}, CmdFinishRun{RunID: "run-1", Outcome: "done"}, logger, nil)

	if strings.Contains(buf.String(), "reason=") {
		t.Fatalf("done run logged a reason: %q", buf.String())
	}
}

func TestRunEffect_StopAlertLogsReason(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	a := &fakeAlert{}

	runEffect(context.Background(), effectEnv{alert: a}, CmdStopAlert{Reason: "shutdown"}, logger, nil)

	if !strings.Contains(buf.String(), "reason=shutdown") {
		t.Fatalf("log %q missing reason", buf.String())
	}
	if _, stops := a.counts(); stops != 1 {
		t.Fatalf("alert stops = %d, want 1", stops)
	}
}
