// Package walkthrough owns the guided recipe state: the current step, the
// target weight and the live timer session. Every mutation goes through
// the Controller, one at a time, and each state-affecting action persists
// the record, publishes its timer event and updates metrics.
package walkthrough

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/bread-timer/internal/alarm"
	"github.com/sweeney/bread-timer/internal/clock"
	"github.com/sweeney/bread-timer/internal/logger"
	"github.com/sweeney/bread-timer/internal/metrics"
	"github.com/sweeney/bread-timer/internal/mqtt"
	"github.com/sweeney/bread-timer/internal/notify"
	"github.com/sweeney/bread-timer/internal/recipe"
	"github.com/sweeney/bread-timer/internal/store"
	"github.com/sweeney/bread-timer/internal/timer"
)

// ErrStepOutOfRange is returned when navigation would leave the step list.
var ErrStepOutOfRange = errors.New("step out of range")

// Options wires a Controller. Recipe, Bridge and Alarm are required;
// the rest may be nil.
type Options struct {
	Recipe    *recipe.Recipe
	Bridge    *store.Bridge
	Alarm     *alarm.Scheduler
	Notifier  notify.Sink
	Publisher mqtt.Publisher
	Metrics   *metrics.Metrics
	Clock     clock.Clock
	// NewRunID labels each countdown run. Defaults to random UUIDs.
	NewRunID func() string
}

// Controller is the single owner of the walkthrough state.
type Controller struct {
	mu sync.Mutex

	recipe    *recipe.Recipe
	bridge    *store.Bridge
	alarm     *alarm.Scheduler
	notifier  notify.Sink
	publisher mqtt.Publisher
	metrics   *metrics.Metrics
	clock     clock.Clock
	newRunID  func() string

	overrides  recipe.Overrides
	stepIndex  int
	weight     float64
	session    *timer.Session
	imageIndex int
	counts     timer.EventCounts
}

// New creates a Controller positioned on the first step with the recipe's
// default weight. Call Restore to pick up persisted state.
func New(o Options) *Controller {
	if o.Clock == nil {
		o.Clock = clock.NewReal()
	}
	if o.NewRunID == nil {
		o.NewRunID = uuid.NewString
	}
	c := &Controller{
		recipe:    o.Recipe,
		bridge:    o.Bridge,
		alarm:     o.Alarm,
		notifier:  o.Notifier,
		publisher: o.Publisher,
		metrics:   o.Metrics,
		clock:     o.Clock,
		newRunID:  o.NewRunID,
		overrides: recipe.Overrides{},
		weight:    o.Recipe.DefaultWeight,
	}
	c.session = c.sessionFor(0)
	return c
}

// Restore loads the persisted state and reconciles any saved end
// timestamp against the current time. A future end resumes the countdown
// and re-arms the alarm. A past end expires the session at once, rings,
// and sends one "while away" alert.
func (c *Controller) Restore() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	st := c.bridge.Load()
	c.overrides = c.bridge.LoadOverrides()

	if st.Step >= len(c.recipe.Steps) {
		logger.Warnf("walkthrough: stored step %d beyond last step, using %d", st.Step, len(c.recipe.Steps)-1)
		st.Step = len(c.recipe.Steps) - 1
	}
	c.stepIndex = st.Step
	c.weight = st.Weight
	c.imageIndex = 0
	c.session = c.sessionFor(c.stepIndex)

	if st.TimerEndTimestamp != nil {
		c.session.RunID = c.newRunID()
		ev, expired, err := c.session.Restore(*st.TimerEndTimestamp, now)
		switch {
		case err != nil:
			logger.Warnf("walkthrough: dropping stored timer for step %d: %v", c.session.StepID, err)
			c.session = c.sessionFor(c.stepIndex)
		case expired:
			logger.Infof("walkthrough: step %d timer expired while away", c.session.StepID)
			c.expiredLocked(ev)
			return
		default:
			logger.Infof("walkthrough: step %d timer resumed, %s left", c.session.StepID, timer.FormatClock(ev.RemainingSeconds))
			c.alarm.ScheduleFor(c.session)
			c.emit(ev)
		}
	}
	c.saveLocked()
	logger.Infof("walkthrough: restored step %d/%d, weight %.0f g", c.stepIndex+1, len(c.recipe.Steps), c.weight)
}

// Navigate moves delta steps forward or back.
func (c *Controller) Navigate(delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.goToLocked(c.stepIndex + delta)
}

// GoTo jumps to the step at index. Jumping to the current step changes nothing.
func (c *Controller) GoTo(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index == c.stepIndex {
		return nil
	}
	return c.goToLocked(index)
}

func (c *Controller) goToLocked(index int) error {
	if index < 0 || index >= len(c.recipe.Steps) {
		return fmt.Errorf("step index %d of %d: %w", index, len(c.recipe.Steps), ErrStepOutOfRange)
	}
	c.teardownLocked()
	c.stepIndex = index
	c.imageIndex = 0
	c.session = c.sessionFor(index)
	c.saveLocked()
	logger.Infof("walkthrough: now on step %d/%d", index+1, len(c.recipe.Steps))
	return nil
}

// SetWeight changes the target weight. Invalid values are rejected and
// the previous weight is kept.
func (c *Controller) SetWeight(w float64) error {
	if err := recipe.ValidateWeight(w); err != nil {
		return fmt.Errorf("weight %v: %w", w, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.weight = w
	c.saveLocked()
	return nil
}

// Start begins or resumes the current step's countdown and arms the alarm.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(c.clock.Now())
}

func (c *Controller) startLocked(now time.Time) error {
	fresh := c.session.State == timer.StateIdle
	ev, err := c.session.Start(now)
	if err != nil {
		return err
	}
	if fresh {
		c.session.RunID = c.newRunID()
		ev.RunID = c.session.RunID
	}
	c.alarm.ScheduleFor(c.session)
	c.emit(ev)
	c.saveLocked()
	return nil
}

// Pause freezes the countdown and cancels the pending alarm. A countdown
// that is already due expires instead and timer.ErrDue is returned.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pauseLocked(c.clock.Now())
}

func (c *Controller) pauseLocked(now time.Time) error {
	ev, err := c.session.Pause(now)
	if errors.Is(err, timer.ErrDue) {
		c.tickLocked(now)
		return err
	}
	if err != nil {
		return err
	}
	c.alarm.Cancel()
	c.emit(ev)
	c.saveLocked()
	return nil
}

// Toggle is the single timer button: start when idle or paused, pause
// when running, acknowledge when ringing.
func (c *Controller) Toggle() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	switch c.session.State {
	case timer.StateRunning:
		return c.pauseLocked(now)
	case timer.StateExpired:
		return c.acknowledgeLocked(now)
	default:
		return c.startLocked(now)
	}
}

// Tick refreshes the countdown from the stored end timestamp. It is the
// display refresh of the run loop; correctness never depends on how often
// it runs.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tickLocked(c.clock.Now())
}

func (c *Controller) tickLocked(now time.Time) {
	ev, expired := c.session.Tick(now)
	if expired {
		logger.Infof("walkthrough: step %d timer expired", c.session.StepID)
		c.expiredLocked(ev)
		return
	}
	c.metrics.SetPosition(c.stepIndex, c.weight, c.session.Remaining(now))
}

// Acknowledge dismisses the alarm of an expired countdown.
func (c *Controller) Acknowledge() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acknowledgeLocked(c.clock.Now())
}

func (c *Controller) acknowledgeLocked(now time.Time) error {
	ev, err := c.session.Acknowledge(now)
	if err != nil {
		return err
	}
	c.alarm.Silence()
	c.emit(ev)
	c.saveLocked()
	return nil
}

// ResetTimer returns the countdown to its full duration from any state.
func (c *Controller) ResetTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.alarm.Cancel()
	c.alarm.Silence()
	ev := c.session.Reset(c.clock.Now())
	if c.session.HasTimer() {
		c.emit(ev)
	}
	c.saveLocked()
}

// FullReset stops everything, clears the persisted record and returns to
// the first step with the default weight. Content edits are kept.
func (c *Controller) FullReset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardownLocked()
	c.bridge.Clear()
	c.stepIndex = 0
	c.weight = c.recipe.DefaultWeight
	c.imageIndex = 0
	c.session = c.sessionFor(0)
	c.metrics.SetPosition(0, c.weight, c.session.Remaining(c.clock.Now()))
	logger.Infof("walkthrough: full reset")
}

// UpdateStep edits a step's content. When the current step's timer length
// changes while its countdown is idle, the session is resized.
func (c *Controller) UpdateStep(id int, p recipe.Patch) (recipe.Step, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	step, err := c.overrides.Update(c.recipe, id, p)
	if err != nil {
		return recipe.Step{}, err
	}
	c.bridge.SaveOverrides(c.overrides)
	logger.Infof("walkthrough: step %d edited", id)

	if c.session.StepID == id && c.session.State == timer.StateIdle && c.session.DurationSeconds != step.Timer {
		c.session = c.sessionFor(c.stepIndex)
	}
	return step, nil
}

// ShowImage moves the image carousel of the current step by delta, wrapping around.
func (c *Controller) ShowImage(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	step, _ := c.recipe.StepAt(c.stepIndex, c.overrides)
	n := len(step.Images)
	if n == 0 {
		c.imageIndex = 0
		return
	}
	c.imageIndex = ((c.imageIndex+delta)%n + n) % n
}

// State returns the record that would be persisted now.
func (c *Controller) State() store.AppState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appStateLocked()
}

// Session returns a copy of the live session.
func (c *Controller) Session() *timer.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// teardownLocked cancels and silences the alarm and resets a session that
// was in use. Nothing of the old countdown survives.
func (c *Controller) teardownLocked() {
	c.alarm.Cancel()
	c.alarm.Silence()
	if c.session.State != timer.StateIdle {
		c.emit(c.session.Reset(c.clock.Now()))
	}
}

func (c *Controller) expiredLocked(ev timer.Event) {
	c.emit(ev)
	if c.alarm.Ring() {
		c.metrics.AlarmRung(string(c.alarm.Mode()))
	}
	if c.notifier != nil {
		step, _ := c.recipe.StepAt(c.stepIndex, c.overrides)
		c.notifier.NotifyExpired(step.Title, ev.WhileAway)
	}
	c.saveLocked()
}

func (c *Controller) emit(ev timer.Event) {
	c.counts.Record(ev)
	c.metrics.TimerEvent(ev)
	logger.Infof("walkthrough: %s step=%d state=%s remaining=%s", ev.Type, ev.StepID, ev.State, timer.FormatClock(ev.RemainingSeconds))
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ev); err != nil {
		logger.Warnf("walkthrough: publish error: %v", err)
	}
}

func (c *Controller) saveLocked() {
	c.bridge.Save(c.appStateLocked())
	c.metrics.SetPosition(c.stepIndex, c.weight, c.session.Remaining(c.clock.Now()))
}

func (c *Controller) appStateLocked() store.AppState {
	st := store.AppState{Step: c.stepIndex, Weight: c.weight}
	if c.session.EndTimestamp != nil {
		end := *c.session.EndTimestamp
		st.TimerEndTimestamp = &end
	}
	return st
}

func (c *Controller) sessionFor(index int) *timer.Session {
	step, _ := c.recipe.StepAt(index, c.overrides)
	return timer.NewSession(step.ID, step.Timer)
}
