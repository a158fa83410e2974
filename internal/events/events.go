// Package events carries runner notifications to live observers.
//
// The runner publishes lifecycle transitions, every flushed stats window and
// every error backoff on a Bus. The telemetry server forwards them to
// websocket subscribers. Publishing never blocks the runner.
package events

import (
	"time"

	"stress-client/internal/op"
	"stress-client/internal/stats"
)

// EventType represents the type of event
type EventType string

const (
	// EventStateChanged is emitted when the runner enters a new lifecycle state
	EventStateChanged EventType = "state_changed"
	// EventWindowFlushed is emitted after a stats record has been written
	EventWindowFlushed EventType = "window_flushed"
	// EventBackoff is emitted when the runner sleeps after repeated store errors
	EventBackoff EventType = "backoff"
)

// Event represents a runner notification
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	ClientID  string    `json:"client_id,omitempty"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	State             string            `json:"state,omitempty"`
	Window            int64             `json:"window,omitempty"`
	Counts            map[string]uint64 `json:"counts,omitempty"`
	ConsecutiveErrors int               `json:"consecutive_errors,omitempty"`
	Backoff           string            `json:"backoff,omitempty"`
	Error             string            `json:"error,omitempty"`
}

// NewStateChangedEvent creates a lifecycle transition event
func NewStateChangedEvent(clientID, state string) Event {
	return Event{
		Type:      EventStateChanged,
		Timestamp: time.Now(),
		ClientID:  clientID,
		Data: EventData{
			State: state,
		},
	}
}

// NewWindowFlushedEvent creates an event for a flushed stats record
func NewWindowFlushedEvent(clientID string, rec stats.Record) Event {
	counts := make(map[string]uint64, op.Count)
	for _, k := range op.All {
		counts[k.String()] = rec.Count(k)
	}
	return Event{
		Type:      EventWindowFlushed,
		Timestamp: time.Now(),
		ClientID:  clientID,
		Data: EventData{
			Window: rec.Timestamp,
			Counts: counts,
		},
	}
}

// NewBackoffEvent creates an event for an error backoff
func NewBackoffEvent(clientID string, consecutive int, backoff time.Duration, err error) Event {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return Event{
		Type:      EventBackoff,
		Timestamp: time.Now(),
		ClientID:  clientID,
		Data: EventData{
			ConsecutiveErrors: consecutive,
			Backoff:           backoff.String(),
			Error:             errMsg,
		},
	}
}
