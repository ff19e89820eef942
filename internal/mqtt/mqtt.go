// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/bread-timer/internal/timer"
)

// Topic is the MQTT topic for timer events.
const Topic = "kitchen/bread/timer/events"

// TopicSystem is the MQTT topic for system lifecycle events and alerts.
const TopicSystem = "kitchen/bread/timer/system"

// System event names.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventHeartbeat   = "HEARTBEAT"
	EventReconnected = "RECONNECTED"
	EventOffline     = "OFFLINE"
	EventAlert       = "ALERT"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a timer event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event timer.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent is a lifecycle event or an alert.
type SystemEvent struct {
	Timestamp time.Time
	Event     string
	Reason    string // shutdown signal, or LWT reason
	Title     string // ALERT only
	Message   string // ALERT only
	// RawPayload, if set, is sent verbatim (status snapshots).
	RawPayload []byte
	Retained   bool
}

// Payload is the timer event message.
type Payload struct {
	Timer TimerPayload `json:"timer"`
}

// TimerPayload contains the timer event details.
type TimerPayload struct {
	Timestamp        string `json:"timestamp"`
	Event            string `json:"event"`
	Run              string `json:"run,omitempty"`
	Step             int    `json:"step"`
	State            string `json:"state"`
	RemainingSeconds int    `json:"remaining_seconds"`
	WhileAway        bool   `json:"while_away,omitempty"`
}

// FormatPayload creates the JSON payload for a timer event.
func FormatPayload(event timer.Event) ([]byte, error) {
	payload := Payload{
		Timer: TimerPayload{
			Timestamp:        event.Timestamp.UTC().Format(time.RFC3339),
			Event:            string(event.Type),
			Run:              event.RunID,
			Step:             event.StepID,
			State:            string(event.State),
			RemainingSeconds: event.RemainingSeconds,
			WhileAway:        event.WhileAway,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is the message for events that carry no status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	Title     string `json:"title,omitempty"`
	Message   string `json:"message,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
			Title:     event.Title,
			Message:   event.Message,
		},
	}
	return json.Marshal(payload)
}

// systemQoS returns the QoS used for a system event. Alerts and lifecycle
// messages must arrive, heartbeats may be lost.
func systemQoS(event SystemEvent) byte {
	if event.Event == EventHeartbeat {
		return 0
	}
	return 1
}
