package tone

import (
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/bread-timer/internal/clock"
	"github.com/sweeney/bread-timer/internal/logger"
)

// Oscillator implements Source. The scheduled transition runs on the
// oscillator's own timer goroutine and needs nothing from the caller once armed.
type Oscillator struct {
	mu    sync.Mutex
	clock clock.Clock
	open  Opener

	out     Output
	state   State
	gain    float64
	hz      int
	gen     uint64
	timer   clock.Timer
	armedAt time.Time
}

// NewOscillator creates an inactive oscillator. A nil opener means no
// audio subsystem; every operation then degrades to a no-op.
func NewOscillator(c clock.Clock, open Opener) *Oscillator {
	return &Oscillator{
		clock: c,
		open:  open,
		state: StateInactive,
		hz:    BaseHz,
	}
}

// Activate opens the output and holds it at the silent level.
func (o *Oscillator) Activate() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.out != nil {
		return
	}
	if o.open == nil {
		logger.Warnf("tone: no audio output configured")
		return
	}
	out, err := o.open()
	if err != nil {
		logger.Warnf("tone: output unavailable: %v", err)
		return
	}
	o.out = out
	o.hz = BaseHz
	o.state = StateSilent
	o.apply(SilentGain)
	logger.Debugf("tone: signal started (silent)")
}

// Deactivate cancels any schedule and releases the output.
func (o *Oscillator) Deactivate() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.cancelLocked()
	if o.out == nil {
		return
	}
	if err := o.out.Set(Level{Gain: 0, Hz: o.hz}); err != nil {
		logger.Warnf("tone: silence output: %v", err)
	}
	if err := o.out.Close(); err != nil {
		logger.Warnf("tone: close output: %v", err)
	}
	o.out = nil
	o.gain = 0
	o.state = StateInactive
	logger.Debugf("tone: signal stopped")
}

// ArmAt replaces any pending schedule with one firing at t.
// A t at or before now goes audible immediately.
func (o *Oscillator) ArmAt(t time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.out == nil {
		logger.Debugf("tone: arm ignored, signal inactive")
		return
	}
	o.cancelLocked()
	o.hz = BaseHz

	d := t.Sub(o.clock.Now())
	if d <= 0 {
		o.state = StateRinging
		o.apply(FullGain)
		return
	}

	o.state = StateArmed
	o.armedAt = t
	o.apply(SilentGain)
	gen := o.gen
	o.timer = o.clock.AfterFunc(d, func() { o.fire(gen) })
	logger.Debugf("tone: armed for %s (in %v)", t.Format(time.RFC3339), d.Round(time.Second))
}

// Disarm cancels the pending schedule and returns to silent.
func (o *Oscillator) Disarm() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.cancelLocked()
	if o.out == nil {
		return
	}
	o.hz = BaseHz
	o.state = StateSilent
	o.apply(SilentGain)
}

// IsActive reports whether the output is open.
func (o *Oscillator) IsActive() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.out != nil
}

// Sound goes audible now.
func (o *Oscillator) Sound() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.out == nil {
		return
	}
	o.cancelLocked()
	o.state = StateRinging
	o.apply(FullGain)
}

// SetFrequency retunes the signal, keeping the current gain.
func (o *Oscillator) SetFrequency(hz int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.hz = hz
	if o.out != nil {
		o.apply(o.gain)
	}
}

// State returns the current state.
func (o *Oscillator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Pending returns the instant of the single pending transition, if armed.
func (o *Oscillator) Pending() (time.Time, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateArmed {
		return time.Time{}, false
	}
	return o.armedAt, true
}

// String is used in log lines.
func (o *Oscillator) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return fmt.Sprintf("oscillator(%s, %d Hz, gain %.4f)", o.state, o.hz, o.gain)
}

func (o *Oscillator) fire(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	// A newer ArmAt/Disarm/Deactivate superseded this schedule.
	if gen != o.gen || o.out == nil {
		return
	}
	o.timer = nil
	o.state = StateRinging
	o.apply(FullGain)
	logger.Infof("tone: scheduled alarm fired")
}

// cancelLocked drops the pending schedule. Bumping gen also invalidates a
// callback that already started and is waiting for the lock.
func (o *Oscillator) cancelLocked() {
	o.gen++
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.armedAt = time.Time{}
}

func (o *Oscillator) apply(gain float64) {
	o.gain = gain
	if err := o.out.Set(Level{Gain: gain, Hz: o.hz}); err != nil {
		logger.Warnf("tone: set level: %v", err)
	}
}
