package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// The control socket lets `switchhatch ctl` and scripts query and stop a run.
//
// Protocol: Line-delimited JSON
//   - Client sends: {"type": "status"} or {"type": "stop", "data": {"reason": "..."}}
//   - Server responds: {"status": "ok", "data": {...}} or {"status": "error", "error": "msg"}
// ============================================================================

// IPCResponse represents the response sent back to IPC clients
type IPCResponse struct {
	Status string          `json:"status"`          // "ok" or "error"
	Error  string          `json:"error,omitempty"` // error message if status == "error"
	Data   json.RawMessage `json:"data,omitempty"`  // status snapshot for "status"
}

// runIPCServer starts the Unix domain socket server.
// It runs until ctx is canceled, at which point it closes the listener and exits.
func runIPCServer(ctx context.Context, socketPath string, events chan<- Event, statusWait time.Duration, logger *slog.Logger) error {
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0660); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}

			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(ctx, conn, events, statusWait, logger)
	}
}

// handleIPCConnection processes a single IPC client connection
func handleIPCConnection(ctx context.Context, conn net.Conn, events chan<- Event, statusWait time.Duration, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	respond := func(resp IPCResponse) {
		if err := encoder.Encode(resp); err != nil {
			logger.Error("IPC failed to send response", "error", err)
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		logger.Debug("IPC received", "line", line)

		ev, err := UnmarshalEvent([]byte(line))
		if err != nil {
			respond(IPCResponse{Status: "error", Error: fmt.Sprintf("parse event: %v", err)})
			continue
		}

		if _, ok := ev.(RequestStatus); ok {
			respond(requestStatus(ctx, events, statusWait))
			continue
		}

		select {
		case events <- ev:
			respond(IPCResponse{Status: "ok"})
		default:
			respond(IPCResponse{Status: "error", Error: "event queue full"})
		}
	}

	logger.Debug("IPC connection closed")
}

// requestStatus round-trips a RequestStatus through the daemon loop.
func requestStatus(ctx context.Context, events chan<- Event, wait time.Duration) IPCResponse {
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	reply := make(chan StatusSnapshot, 1)
	select {
	case events <- RequestStatus{Reply: reply}:
	case <-waitCtx.Done():
		return IPCResponse{Status: "error", Error: "daemon busy"}
	}

	select {
	case snap := <-reply:
		data, err := json.Marshal(snap)
		if err != nil {
			return IPCResponse{Status: "error", Error: fmt.Sprintf("marshal status: %v", err)}
		}
		return IPCResponse{Status: "ok", Data: data}
	case <-waitCtx.Done():
		return IPCResponse{Status: "error", Error: "status request timed out"}
	}
}

// ============================================================================
// IPC Client Utility Functions
// ============================================================================

// SendIPCEvent sends an event to the daemon via IPC and returns the
// response data, if any.
func SendIPCEvent(socketPath string, ev Event) (json.RawMessage, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := MarshalEvent(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", strings.TrimSpace(string(data))); err != nil {
		return nil, fmt.Errorf("send event: %w", err)
	}

	decoder := json.NewDecoder(conn)
	var resp IPCResponse
	if err := decoder.Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.Status != "ok" {
		return nil, fmt.Errorf("ipc error: %s", resp.Error)
	}

	return resp.Data, nil
}
