package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/sweeney/bread-timer/internal/logger"
	"github.com/sweeney/bread-timer/internal/recipe"
)

// Storage keys.
const (
	StateKey     = "breadAppState"
	OverridesKey = "breadAppCustomData"
)

// AppState is the persisted walkthrough record.
type AppState struct {
	Step   int     `json:"step"`
	Weight float64 `json:"weight"`
	// TimerEndTimestamp mirrors the running session's end instant in epoch
	// milliseconds, and is null otherwise.
	TimerEndTimestamp *int64 `json:"timerEndTimestamp"`
}

// Bridge reads and writes AppState over a KV. Failures are logged and
// reported to OnError, never returned to the caller.
type Bridge struct {
	kv            KV
	defaultWeight float64

	// OnError, if set, is called with the failed operation name.
	OnError func(op string, err error)
}

// NewBridge creates a Bridge. defaultWeight is used when no valid weight
// was persisted.
func NewBridge(kv KV, defaultWeight float64) *Bridge {
	return &Bridge{kv: kv, defaultWeight: defaultWeight}
}

// Default returns the state used when nothing valid is stored.
func (b *Bridge) Default() AppState {
	return AppState{Step: 0, Weight: b.defaultWeight}
}

// Save writes st.
func (b *Bridge) Save(st AppState) {
	data, err := json.Marshal(st)
	if err != nil {
		b.fail("save", fmt.Errorf("marshal state: %w", err))
		return
	}
	if err := b.kv.Set(StateKey, data); err != nil {
		b.fail("save", err)
		return
	}
	logger.Debugf("store: saved %s", data)
}

// Load returns the stored state, or the default when it is missing or
// unreadable. Out-of-range fields are replaced individually.
func (b *Bridge) Load() AppState {
	def := b.Default()

	data, err := b.kv.Get(StateKey)
	if errors.Is(err, ErrNotFound) {
		return def
	}
	if err != nil {
		b.fail("load", err)
		return def
	}

	var st AppState
	if err := json.Unmarshal(data, &st); err != nil {
		logger.Warnf("store: corrupt state record, using defaults: %v", err)
		return def
	}
	if st.Step < 0 {
		logger.Warnf("store: invalid step %d, using 0", st.Step)
		st.Step = 0
	}
	if st.Weight <= 0 || math.IsNaN(st.Weight) || math.IsInf(st.Weight, 0) {
		logger.Warnf("store: invalid weight %v, using %v", st.Weight, b.defaultWeight)
		st.Weight = b.defaultWeight
	}
	return st
}

// Clear removes the stored state.
func (b *Bridge) Clear() {
	if err := b.kv.Delete(StateKey); err != nil {
		b.fail("clear", err)
	}
}

// SaveOverrides writes edited recipe steps.
func (b *Bridge) SaveOverrides(o recipe.Overrides) {
	data, err := json.Marshal(o)
	if err != nil {
		b.fail("save_overrides", fmt.Errorf("marshal overrides: %w", err))
		return
	}
	if err := b.kv.Set(OverridesKey, data); err != nil {
		b.fail("save_overrides", err)
	}
}

// LoadOverrides returns the edited steps, or an empty set.
func (b *Bridge) LoadOverrides() recipe.Overrides {
	o := recipe.Overrides{}
	data, err := b.kv.Get(OverridesKey)
	if errors.Is(err, ErrNotFound) {
		return o
	}
	if err != nil {
		b.fail("load_overrides", err)
		return o
	}
	if err := json.Unmarshal(data, &o); err != nil {
		logger.Warnf("store: corrupt overrides record, ignoring: %v", err)
		return recipe.Overrides{}
	}
	if o == nil {
		// A stored null decodes to a nil map.
		return recipe.Overrides{}
	}
	return o
}

// ClearOverrides removes all edited steps.
func (b *Bridge) ClearOverrides() {
	if err := b.kv.Delete(OverridesKey); err != nil {
		b.fail("clear_overrides", err)
	}
}

func (b *Bridge) fail(op string, err error) {
	logger.Errorf("store: %s: %v", op, err)
	if b.OnError != nil {
		b.OnError(op, err)
	}
}
