package timer

import (
	"fmt"
	"time"
)

// Session is the countdown attached to the currently displayed step.
//
// EndTimestamp (epoch milliseconds) is set if and only if State is RUNNING.
// RemainingSeconds is never negative; while running it is a cache of the
// last computed value, while paused it is frozen.
type Session struct {
	StepID           int
	RunID            string
	DurationSeconds  int
	EndTimestamp     *int64
	RemainingSeconds *int
	State            State
}

// NewSession creates an idle session showing the full duration.
// A negative duration is treated as zero (no timer).
func NewSession(stepID, durationSeconds int) *Session {
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	s := &Session{
		StepID:          stepID,
		DurationSeconds: durationSeconds,
		State:           StateIdle,
	}
	s.setRemaining(durationSeconds)
	return s
}

// HasTimer reports whether the step carries a countdown at all.
func (s *Session) HasTimer() bool {
	return s.DurationSeconds > 0
}

// Start begins or resumes the countdown. Valid from IDLE or PAUSED.
func (s *Session) Start(now time.Time) (Event, error) {
	if !s.HasTimer() {
		return Event{}, ErrNoTimer
	}
	if s.State != StateIdle && s.State != StatePaused {
		return Event{}, fmt.Errorf("start from %s: %w", s.State, ErrInvalidTransition)
	}

	remaining := s.DurationSeconds
	if s.RemainingSeconds != nil && *s.RemainingSeconds > 0 {
		remaining = *s.RemainingSeconds
	}

	end := now.UnixMilli() + int64(remaining)*1000
	s.EndTimestamp = &end
	s.setRemaining(remaining)
	s.State = StateRunning
	return s.event(now, EventStarted), nil
}

// Pause freezes the countdown. Valid from RUNNING only, and only while
// time remains; a due session returns ErrDue and must be expired with Tick.
func (s *Session) Pause(now time.Time) (Event, error) {
	if s.State != StateRunning {
		return Event{}, fmt.Errorf("pause from %s: %w", s.State, ErrInvalidTransition)
	}
	left := ceilSeconds(*s.EndTimestamp - now.UnixMilli())
	if left <= 0 {
		return Event{}, ErrDue
	}
	s.setRemaining(left)
	s.EndTimestamp = nil
	s.State = StatePaused
	return s.event(now, EventPaused), nil
}

// Tick recomputes the remaining time from the end timestamp. It returns
// expired=true exactly once, on the RUNNING to EXPIRED transition.
func (s *Session) Tick(now time.Time) (Event, bool) {
	if s.State != StateRunning {
		return Event{}, false
	}
	left := ceilSeconds(*s.EndTimestamp - now.UnixMilli())
	if left > 0 {
		s.setRemaining(left)
		return Event{}, false
	}
	s.expire()
	return s.event(now, EventExpired), true
}

// Acknowledge records that the user dismissed the alarm. Valid from EXPIRED only.
func (s *Session) Acknowledge(now time.Time) (Event, error) {
	if s.State != StateExpired {
		return Event{}, fmt.Errorf("acknowledge from %s: %w", s.State, ErrInvalidTransition)
	}
	s.State = StateAcknowledged
	return s.event(now, EventAcknowledged), nil
}

// Reset returns the session to IDLE with the full duration. Valid from any state.
func (s *Session) Reset(now time.Time) Event {
	s.EndTimestamp = nil
	s.setRemaining(s.DurationSeconds)
	s.State = StateIdle
	return s.event(now, EventReset)
}

// Restore reconciles a persisted end timestamp against now. A future end
// resumes RUNNING; an end at or before now lands directly in EXPIRED with
// the event flagged WhileAway. Only an IDLE session with a timer can be restored.
func (s *Session) Restore(endMs int64, now time.Time) (Event, bool, error) {
	if !s.HasTimer() {
		return Event{}, false, ErrNoTimer
	}
	if s.State != StateIdle {
		return Event{}, false, fmt.Errorf("restore into %s: %w", s.State, ErrInvalidTransition)
	}

	left := ceilSeconds(endMs - now.UnixMilli())
	if left > 0 {
		end := endMs
		s.EndTimestamp = &end
		s.setRemaining(left)
		s.State = StateRunning
		return s.event(now, EventRestored), false, nil
	}

	s.expire()
	e := s.event(now, EventExpired)
	e.WhileAway = true
	return e, true, nil
}

// Remaining returns the seconds to display at now, never negative.
func (s *Session) Remaining(now time.Time) int {
	if s.State == StateRunning && s.EndTimestamp != nil {
		left := ceilSeconds(*s.EndTimestamp - now.UnixMilli())
		if left < 0 {
			return 0
		}
		return left
	}
	if s.RemainingSeconds != nil {
		return *s.RemainingSeconds
	}
	return s.DurationSeconds
}

// EndTime returns the end timestamp as a time.Time, if running.
func (s *Session) EndTime() (time.Time, bool) {
	if s.EndTimestamp == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*s.EndTimestamp), true
}

// Clone returns a deep copy safe to hand to readers.
func (s *Session) Clone() *Session {
	c := *s
	if s.EndTimestamp != nil {
		end := *s.EndTimestamp
		c.EndTimestamp = &end
	}
	if s.RemainingSeconds != nil {
		r := *s.RemainingSeconds
		c.RemainingSeconds = &r
	}
	return &c
}

// Validate checks the session invariants.
func (s *Session) Validate() error {
	if (s.EndTimestamp != nil) != (s.State == StateRunning) {
		return fmt.Errorf("end timestamp set=%v in state %s", s.EndTimestamp != nil, s.State)
	}
	if s.RemainingSeconds != nil && *s.RemainingSeconds < 0 {
		return fmt.Errorf("negative remaining seconds %d", *s.RemainingSeconds)
	}
	if s.State == StateExpired && s.RemainingSeconds != nil && *s.RemainingSeconds != 0 {
		return fmt.Errorf("expired with %d seconds remaining", *s.RemainingSeconds)
	}
	return nil
}

func (s *Session) expire() {
	s.EndTimestamp = nil
	s.setRemaining(0)
	s.State = StateExpired
}

func (s *Session) setRemaining(v int) {
	if v < 0 {
		v = 0
	}
	s.RemainingSeconds = &v
}

func (s *Session) event(now time.Time, t EventType) Event {
	return Event{
		Timestamp:        now,
		Type:             t,
		RunID:            s.RunID,
		StepID:           s.StepID,
		State:            s.State,
		RemainingSeconds: s.Remaining(now),
	}
}

// ceilSeconds converts a millisecond delta to whole seconds, rounding up.
// Integer division truncates toward zero, which is already the ceiling for
// negative deltas.
func ceilSeconds(ms int64) int {
	q := ms / 1000
	if ms%1000 > 0 {
		q++
	}
	return int(q)
}

// FormatClock renders seconds as h:mm:ss, or m:ss under an hour.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	sec := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
