// Package status provides a thread-safe status tracker for the bread-timer daemon.
// It is read by the HTTP handlers, the heartbeat and the lifecycle messages.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/bread-timer/internal/timer"
)

// NetworkInfo contains network state as reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	TickMs    int64
	Heartbeat string
	Broker    string
	HTTPAddr  string
	Store     string
	Audio     string // buzzer line, or "off"
	PushURLs  int
}

// Walkthrough is the part of the step card relevant to daemon status.
type Walkthrough struct {
	StepIndex        int
	StepCount        int
	StepTitle        string
	Weight           float64
	TimerState       timer.State
	RemainingSeconds int
	AlarmRinging     bool
	AlarmMode        string
	Counts           timer.EventCounts
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Walkthrough   Walkthrough
	Restored      bool
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// SetClock replaces the time source used by Snapshot.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}

// Update records the latest walkthrough state. Called from the run loop
// on every tick and after each user action.
func (t *Tracker) Update(w Walkthrough) {
	t.mu.Lock()
	t.snap.Walkthrough = w
	t.snap.Restored = true
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	now := t.now
	t.mu.RUnlock()
	s.Now = now()
	return s
}
