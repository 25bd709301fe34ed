package main

import (
	"encoding/json"
	"fmt"
	"time"

	"switchhatch/internal/sequencer"
)

// ============================================================================
// Events
// ============================================================================
// Events are the only input to the reducer. Control events arrive from the
// IPC socket and the status feed; observations are produced by the daemon
// loop after each tick and by the effects layer.
// ============================================================================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// TimedEvent stamps a control event with its arrival time. The daemon wraps
// every control event so payload types stay free of timestamps.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// RequestStatus asks the daemon for a StatusSnapshot. Reply must be buffered;
// the effects layer never blocks on it.
type RequestStatus struct {
	Reply chan StatusSnapshot `json:"-"`
}

func (RequestStatus) eventMarker() {}

// StopRun halts report delivery. While the run is still going this is a hard
// abort; after the run is done it silences the completion alert.
type StopRun struct {
	Reason string `json:"reason,omitempty"`
}

func (StopRun) eventMarker() {}

// TickObserved is emitted after a report was handed to the transport.
type TickObserved struct {
	Result   sequencer.TickResult
	Snapshot sequencer.Snapshot
	At       time.Time
}

func (TickObserved) eventMarker() {}

// TickFailed is emitted when the machine reported a logic-fatal error.
type TickFailed struct {
	Err      error
	Snapshot sequencer.Snapshot
	At       time.Time
}

func (TickFailed) eventMarker() {}

// TransportFailed is emitted when the report transport dies.
type TransportFailed struct {
	Err error
	At  time.Time
}

func (TransportFailed) eventMarker() {}

// CommandFailed is emitted when executing a Command fails.
type CommandFailed struct {
	Command Command
	Err     error
	At      time.Time
}

func (CommandFailed) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================
// Only control events travel over the wire. Observations are daemon-internal.
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "status":
		return RequestStatus{}, nil

	case "stop":
		var a StopRun
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &a); err != nil {
				return nil, fmt.Errorf("unmarshal StopRun: %w", err)
			}
		}
		return a, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
	case RequestStatus:
		env.Type = "status"

	case StopRun:
		env.Type = "stop"
		if e.Reason != "" {
			data, err := json.Marshal(e)
			if err != nil {
				return nil, fmt.Errorf("marshal StopRun: %w", err)
			}
			env.Data = data
		}

	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	return json.Marshal(env)
}
