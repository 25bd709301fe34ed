package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// startIPC runs the IPC server on a short socket path; sun_path is limited
// to 108 bytes, which t.TempDir can exceed.
func startIPC(t *testing.T, events chan Event, wait time.Duration) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "shipc")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	sock := filepath.Join(dir, "s.sock")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runIPCServer(ctx, sock, events, wait, discardLogger())
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("runIPCServer: %v", err)
			}
		case <-time.After(time.Second):
			t.Errorf("timeout waiting for IPC server to stop")
		}
	})

	waitUntil(t, time.Second, func() bool {
		_, err := os.Stat(sock)
		return err == nil
	}, "socket not created")
	return sock
}

func TestIPC_StatusRoundTrip(t *testing.T) {
	events := make(chan Event, 1)
	sock := startIPC(t, events, time.Second)

	go func() {
		ev := <-events
		req, ok := ev.(RequestStatus)
		if !ok {
			return
		}
		req.Reply <- StatusSnapshot{RunID: "abc", Status: "running", Ticks: 42}
	}()

	data, err := SendIPCEvent(sock, RequestStatus{})
	if err != nil {
		t.Fatalf("SendIPCEvent: %v", err)
	}
	var s StatusSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.RunID != "abc" || s.Ticks != 42 {
		t.Fatalf("status = %+v", s)
	}
}

func TestIPC_StatusTimesOut(t *testing.T) {
	events := make(chan Event, 1)
	sock := startIPC(t, events, 50*time.Millisecond)

	_, err := SendIPCEvent(sock, RequestStatus{})
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("err = %v, want timeout", err)
	}
}

func TestIPC_StopIsQueued(t *testing.T) {
	events := make(chan Event, 1)
	sock := startIPC(t, events, time.Second)

	if _, err := SendIPCEvent(sock, StopRun{Reason: "test"}); err != nil {
		t.Fatalf("SendIPCEvent: %v", err)
	}
	select {
	case ev := <-events:
		if ev != (StopRun{Reason: "test"}) {
			t.Fatalf("event = %#v", ev)
		}
	default:
		t.Fatalf("stop was not queued")
	}

	// With the queue full the request is refused rather than blocking.
	events <- StopRun{}
	_, err := SendIPCEvent(sock, StopRun{})
	if err == nil || !strings.Contains(err.Error(), "event queue full") {
		t.Fatalf("err = %v, want queue full", err)
	}
}
