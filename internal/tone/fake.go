package tone

import (
	"sync"
	"time"
)

// FakeOutput records every level it is asked to produce.
type FakeOutput struct {
	mu sync.Mutex

	// Levels contains every Set call in order.
	Levels []Level

	// Closed tracks if Close was called.
	Closed bool

	// SetError, if set, will be returned by Set.
	SetError error
}

// Set records the level.
func (f *FakeOutput) Set(l Level) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.Levels = append(f.Levels, l)
	return nil
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Last returns the most recent level, if any.
func (f *FakeOutput) Last() (Level, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Levels) == 0 {
		return Level{}, false
	}
	return f.Levels[len(f.Levels)-1], true
}

// FakeDevice hands out FakeOutputs and remembers them.
type FakeDevice struct {
	mu sync.Mutex

	// Outputs contains every output opened, in order.
	Outputs []*FakeOutput

	// OpenError, if set, makes Open fail.
	OpenError error
}

// Open implements Opener.
func (d *FakeDevice) Open() (Output, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpenError != nil {
		return nil, d.OpenError
	}
	out := &FakeOutput{}
	d.Outputs = append(d.Outputs, out)
	return out, nil
}

// Current returns the most recently opened output.
func (d *FakeDevice) Current() *FakeOutput {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Outputs) == 0 {
		return nil
	}
	return d.Outputs[len(d.Outputs)-1]
}

// Beep is one recorded FakeBeeper call.
type Beep struct {
	Hz       int
	Duration time.Duration
}

// FakeBeeper records beeps.
type FakeBeeper struct {
	mu sync.Mutex

	Beeps []Beep

	// BeepError, if set, will be returned by Beep.
	BeepError error
}

// Beep records the call.
func (f *FakeBeeper) Beep(hz int, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BeepError != nil {
		return f.BeepError
	}
	f.Beeps = append(f.Beeps, Beep{Hz: hz, Duration: d})
	return nil
}

// Count returns how many beeps were recorded.
func (f *FakeBeeper) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Beeps)
}
