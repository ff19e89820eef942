// Package timer contains the per-step countdown state machine.
// This package has NO external dependencies (no audio, storage, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters, and remaining time is
// always derived from the stored end timestamp, never from counted ticks.
package timer

import (
	"errors"
	"time"
)

// State is the lifecycle state of a Session.
type State string

const (
	StateIdle         State = "IDLE"
	StateRunning      State = "RUNNING"
	StatePaused       State = "PAUSED"
	StateExpired      State = "EXPIRED"
	StateAcknowledged State = "ACKNOWLEDGED"
)

// EventType names a session transition.
type EventType string

const (
	EventStarted      EventType = "TIMER_STARTED"
	EventRestored     EventType = "TIMER_RESTORED"
	EventPaused       EventType = "TIMER_PAUSED"
	EventExpired      EventType = "TIMER_EXPIRED"
	EventAcknowledged EventType = "TIMER_ACKNOWLEDGED"
	EventReset        EventType = "TIMER_RESET"
)

var (
	// ErrNoTimer is returned when starting a step whose duration is zero.
	ErrNoTimer = errors.New("step has no timer")
	// ErrInvalidTransition is returned when an operation is not valid in the current state.
	ErrInvalidTransition = errors.New("invalid timer transition")
	// ErrDue is returned by Pause when the countdown has already reached zero;
	// the caller should Tick to expire the session instead.
	ErrDue = errors.New("timer already due")
)

// Event describes a transition, for publishing and logging.
type Event struct {
	Timestamp        time.Time
	Type             EventType
	RunID            string
	StepID           int
	State            State
	RemainingSeconds int
	// WhileAway is set on expiry detected during restoration.
	WhileAway bool
}

// EventCounts tracks how many transitions of each kind have happened.
type EventCounts struct {
	Started      int
	Paused       int
	Expired      int
	Acknowledged int
	Reset        int
}

// Record increments the counter matching e.Type.
func (c *EventCounts) Record(e Event) {
	switch e.Type {
	case EventStarted, EventRestored:
		c.Started++
	case EventPaused:
		c.Paused++
	case EventExpired:
		c.Expired++
	case EventAcknowledged:
		c.Acknowledged++
	case EventReset:
		c.Reset++
	}
}
