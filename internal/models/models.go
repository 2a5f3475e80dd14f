package models

import (
	"fmt"
	"time"
)

// ConnectivityState describes the monitor's current view of internet access.
type ConnectivityState int

const (
	// StateChecking is the initial state and the state re-entered whenever a
	// probe is in flight.
	StateChecking ConnectivityState = iota
	// StateConnected means the last probe confirmed actual internet access.
	StateConnected
	// StateDisconnected means no usable interface was present or the last
	// reachability probe failed.
	StateDisconnected
)

func (s ConnectivityState) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// MarshalText renders the state as its lowercase name for JSON payloads.
func (s ConnectivityState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *ConnectivityState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "checking":
		*s = StateChecking
	case "connected":
		*s = StateConnected
	case "disconnected":
		*s = StateDisconnected
	default:
		return fmt.Errorf("unknown connectivity state %q", string(text))
	}
	return nil
}

// Sample captures the settled outcome of a single connectivity probe.
// Samples only ever carry Connected or Disconnected; Checking is transient.
type Sample struct {
	State     ConnectivityState `json:"state"`
	Target    string            `json:"target,omitempty"`
	LatencyMs int64             `json:"latency_ms,omitempty"`
	Error     string            `json:"error,omitempty"`
	CheckedAt time.Time         `json:"checked_at"`
}

// Transition records a single state change of the monitor.
type Transition struct {
	From   ConnectivityState `json:"from"`
	To     ConnectivityState `json:"to"`
	Reason string            `json:"reason,omitempty"`
	At     time.Time         `json:"at"`
}
