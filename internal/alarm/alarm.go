// Package alarm bridges a timer session's expiry to the tone source and
// drives the audible pattern once the session has expired.
package alarm

import (
	"sync"
	"time"

	"github.com/sweeney/bread-timer/internal/clock"
	"github.com/sweeney/bread-timer/internal/logger"
	"github.com/sweeney/bread-timer/internal/timer"
	"github.com/sweeney/bread-timer/internal/tone"
)

// Ring pattern timing.
const (
	// AlternateInterval is how long each tone of the two-tone ring lasts.
	AlternateInterval = 500 * time.Millisecond
	// BeepInterval is the period of the fallback beep.
	BeepInterval = 1000 * time.Millisecond
	// BeepDuration is the length of one fallback beep.
	BeepDuration = 500 * time.Millisecond
)

// Mode describes how the current ring is being delivered.
type Mode string

const (
	ModeNone       Mode = "none"
	ModeContinuous Mode = "continuous"
	ModeFallback   Mode = "fallback"
)

// Scheduler arms the tone source for running sessions and rings on expiry.
// Ring is guarded so one expiry produces one ring however many times the
// caller's revival logic reaches it.
type Scheduler struct {
	mu     sync.Mutex
	src    tone.Source
	beeper tone.Beeper
	clock  clock.Clock

	ringing bool
	mode    Mode
	gen     uint64
	next    clock.Timer
	alt     bool
}

// New creates a Scheduler. Either src or beeper may be nil.
func New(src tone.Source, beeper tone.Beeper, c clock.Clock) *Scheduler {
	return &Scheduler{
		src:    src,
		beeper: beeper,
		clock:  c,
		mode:   ModeNone,
	}
}

// ScheduleFor arms the source at the session's end instant when it is
// running. Any other state is a no-op.
func (s *Scheduler) ScheduleFor(sess *timer.Session) {
	if sess == nil || sess.State != timer.StateRunning {
		return
	}
	end, ok := sess.EndTime()
	if !ok || s.src == nil {
		return
	}
	s.src.Activate()
	s.src.ArmAt(end)
	logger.Debugf("alarm: step %d armed for %s", sess.StepID, end.Format(time.RFC3339))
}

// Cancel drops any pending schedule without stopping the signal.
func (s *Scheduler) Cancel() {
	if s.src == nil {
		return
	}
	s.src.Disarm()
}

// Ring starts the audible pattern. It returns false if already ringing.
func (s *Scheduler) Ring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ringing {
		return false
	}
	s.ringing = true
	s.gen++
	s.alt = false

	switch {
	case s.src != nil && s.src.IsActive():
		s.mode = ModeContinuous
		s.src.SetFrequency(tone.BaseHz)
		s.src.Sound()
		s.scheduleLocked(AlternateInterval, s.alternate)
		logger.Infof("alarm: ringing (continuous)")
	case s.beeper != nil:
		s.mode = ModeFallback
		s.beepLocked()
		s.scheduleLocked(BeepInterval, s.beep)
		logger.Infof("alarm: ringing (fallback beeps)")
	default:
		s.mode = ModeNone
		logger.Warnf("alarm: no audio available, alarm is silent")
	}
	return true
}

// Silence stops the pattern and releases the source.
func (s *Scheduler) Silence() {
	s.mu.Lock()
	s.stopLocked()
	wasRinging := s.ringing
	s.ringing = false
	s.mode = ModeNone
	s.mu.Unlock()

	if s.src != nil {
		s.src.Deactivate()
	}
	if wasRinging {
		logger.Infof("alarm: silenced")
	}
}

// Ringing reports whether a ring is in progress.
func (s *Scheduler) Ringing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ringing
}

// Mode reports how the current ring is delivered.
func (s *Scheduler) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Armed reports whether the source holds a pending transition.
func (s *Scheduler) Armed() bool {
	if p, ok := s.src.(interface{ Pending() (time.Time, bool) }); ok {
		_, armed := p.Pending()
		return armed
	}
	return false
}

// SourceActive reports whether the continuous signal is running.
func (s *Scheduler) SourceActive() bool {
	return s.src != nil && s.src.IsActive()
}

func (s *Scheduler) alternate(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || !s.ringing {
		return
	}
	s.alt = !s.alt
	hz := tone.BaseHz
	if s.alt {
		hz = tone.AltHz
	}
	s.src.SetFrequency(hz)
	s.scheduleLocked(AlternateInterval, s.alternate)
}

func (s *Scheduler) beep(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || !s.ringing {
		return
	}
	s.beepLocked()
	s.scheduleLocked(BeepInterval, s.beep)
}

func (s *Scheduler) beepLocked() {
	if err := s.beeper.Beep(tone.BaseHz, BeepDuration); err != nil {
		logger.Warnf("alarm: beep: %v", err)
	}
}

func (s *Scheduler) scheduleLocked(d time.Duration, f func(uint64)) {
	gen := s.gen
	s.next = s.clock.AfterFunc(d, func() { f(gen) })
}

func (s *Scheduler) stopLocked() {
	s.gen++
	if s.next != nil {
		s.next.Stop()
		s.next = nil
	}
}
