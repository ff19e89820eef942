// Package tone provides the alarm's timing reference: a continuously
// running signal whose silent-to-audible transition is scheduled on the
// signal's own timer, so it fires even when the controller is stalled.
// The real output drives a buzzer on a Linux GPIO line; the fake output
// records levels for tests.
package tone

import "time"

// Signal levels and tones.
const (
	// SilentGain keeps the output running without being heard.
	SilentGain = 0.0001
	// FullGain is the audible alarm level.
	FullGain = 1.0
	// BaseHz is the idle and first alarm tone.
	BaseHz = 880
	// AltHz is the second tone of the alternating alarm.
	AltHz = 1200
)

// State is the Clock Source state.
type State string

const (
	StateInactive State = "INACTIVE"
	StateSilent   State = "SILENT"
	StateArmed    State = "ARMED"
	StateRinging  State = "RINGING"
)

// Source is a timing reference immune to controller stalls.
type Source interface {
	// Activate idempotently starts the inaudible signal. If the output
	// cannot be opened it logs and stays inactive.
	Activate()
	// Deactivate stops and releases the signal. Safe when inactive.
	Deactivate()
	// ArmAt schedules the silent-to-audible transition at t on the signal's
	// own timer. Each call replaces the previous schedule.
	ArmAt(t time.Time)
	// Disarm cancels any pending transition and returns to silent.
	Disarm()
	// IsActive reports whether the signal is running.
	IsActive() bool
	// Sound goes audible immediately, cancelling any schedule.
	Sound()
	// SetFrequency retunes the running signal.
	SetFrequency(hz int)
}

// Level is what an Output is asked to produce.
type Level struct {
	Gain float64
	Hz   int
}

// Audible reports whether the level is meant to be heard.
func (l Level) Audible() bool {
	return l.Gain >= 0.5
}

// Output is the device end of the signal.
type Output interface {
	Set(l Level) error
	Close() error
}

// Opener opens an Output. It is called on each activation.
type Opener func() (Output, error)

// Beeper emits discrete short tones, used when no continuous signal is running.
type Beeper interface {
	Beep(hz int, d time.Duration) error
}
