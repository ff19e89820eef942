package tone

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/bread-timer/internal/clock"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestOscillator() (*Oscillator, *FakeDevice, *clock.Fake) {
	clk := clock.NewFake(t0)
	dev := &FakeDevice{}
	return NewOscillator(clk, dev.Open), dev, clk
}

func TestActivate_StartsSilent(t *testing.T) {
	osc, dev, _ := newTestOscillator()

	osc.Activate()

	if !osc.IsActive() {
		t.Fatal("expected active after Activate")
	}
	if osc.State() != StateSilent {
		t.Errorf("expected SILENT, got %s", osc.State())
	}
	out := dev.Current()
	l, ok := out.Last()
	if !ok {
		t.Fatal("expected a level to be set")
	}
	if l.Gain != SilentGain || l.Hz != BaseHz {
		t.Errorf("expected silent %d Hz, got %+v", BaseHz, l)
	}
	if l.Audible() {
		t.Error("silent level must not be audible")
	}
}

func TestActivate_Idempotent(t *testing.T) {
	osc, dev, _ := newTestOscillator()

	osc.Activate()
	osc.Activate()

	if len(dev.Outputs) != 1 {
		t.Errorf("expected 1 output opened, got %d", len(dev.Outputs))
	}
}

func TestActivate_FailsSilently(t *testing.T) {
	osc, dev, _ := newTestOscillator()
	dev.OpenError = errors.New("no such device")

	osc.Activate()

	if osc.IsActive() {
		t.Error("expected inactive when output cannot open")
	}
	if osc.State() != StateInactive {
		t.Errorf("expected INACTIVE, got %s", osc.State())
	}

	// Everything else must be a harmless no-op.
	osc.ArmAt(t0.Add(time.Minute))
	osc.Sound()
	osc.Disarm()
	osc.Deactivate()
}

func TestNilOpener(t *testing.T) {
	osc := NewOscillator(clock.NewFake(t0), nil)
	osc.Activate()
	if osc.IsActive() {
		t.Error("expected inactive without an opener")
	}
}

func TestArmAt_FiresOnOwnTimer(t *testing.T) {
	osc, dev, clk := newTestOscillator()
	osc.Activate()

	osc.ArmAt(t0.Add(10 * time.Second))

	if osc.State() != StateArmed {
		t.Fatalf("expected ARMED, got %s", osc.State())
	}
	if at, ok := osc.Pending(); !ok || !at.Equal(t0.Add(10*time.Second)) {
		t.Errorf("expected pending at +10s, got %v %v", at, ok)
	}

	clk.Advance(9 * time.Second)
	if l, _ := dev.Current().Last(); l.Audible() {
		t.Fatal("fired early")
	}

	clk.Advance(time.Second)
	if osc.State() != StateRinging {
		t.Errorf("expected RINGING, got %s", osc.State())
	}
	if l, _ := dev.Current().Last(); !l.Audible() || l.Gain != FullGain {
		t.Errorf("expected full gain, got %+v", l)
	}
	if _, ok := osc.Pending(); ok {
		t.Error("expected no pending transition after firing")
	}
}

func TestArmAt_LastWriteWins(t *testing.T) {
	osc, dev, clk := newTestOscillator()
	osc.Activate()

	osc.ArmAt(t0.Add(5 * time.Second))
	osc.ArmAt(t0.Add(20 * time.Second))

	if clk.Pending() != 1 {
		t.Errorf("expected exactly 1 pending callback, got %d", clk.Pending())
	}

	clk.Advance(10 * time.Second)
	if osc.State() != StateArmed {
		t.Fatalf("superseded schedule fired: state %s", osc.State())
	}
	if l, _ := dev.Current().Last(); l.Audible() {
		t.Fatal("superseded schedule made the output audible")
	}

	clk.Advance(10 * time.Second)
	if osc.State() != StateRinging {
		t.Errorf("expected RINGING at +20s, got %s", osc.State())
	}
}

func TestArmAt_PastInstantSoundsNow(t *testing.T) {
	osc, dev, clk := newTestOscillator()
	osc.Activate()

	osc.ArmAt(t0.Add(-time.Second))

	if osc.State() != StateRinging {
		t.Errorf("expected RINGING, got %s", osc.State())
	}
	if l, _ := dev.Current().Last(); !l.Audible() {
		t.Error("expected audible output")
	}
	if clk.Pending() != 0 {
		t.Errorf("expected no scheduled callback, got %d", clk.Pending())
	}
}

func TestDisarm_CancelsSchedule(t *testing.T) {
	osc, dev, clk := newTestOscillator()
	osc.Activate()
	osc.ArmAt(t0.Add(5 * time.Second))

	osc.Disarm()
	clk.Advance(time.Minute)

	if osc.State() != StateSilent {
		t.Errorf("expected SILENT, got %s", osc.State())
	}
	for _, l := range dev.Current().Levels {
		if l.Audible() {
			t.Fatalf("output went audible after Disarm: %+v", l)
		}
	}
}

func TestDeactivate_ReleasesOutput(t *testing.T) {
	osc, dev, clk := newTestOscillator()
	osc.Activate()
	osc.ArmAt(t0.Add(5 * time.Second))

	osc.Deactivate()
	clk.Advance(time.Minute)

	out := dev.Current()
	if !out.Closed {
		t.Error("expected output closed")
	}
	if osc.IsActive() {
		t.Error("expected inactive")
	}
	if l, _ := out.Last(); l.Gain != 0 {
		t.Errorf("expected final gain 0, got %v", l.Gain)
	}

	// Second call is a no-op.
	osc.Deactivate()
}

func TestDeactivate_ThenActivateReopens(t *testing.T) {
	osc, dev, _ := newTestOscillator()
	osc.Activate()
	osc.Deactivate()
	osc.Activate()

	if len(dev.Outputs) != 2 {
		t.Errorf("expected 2 outputs opened, got %d", len(dev.Outputs))
	}
	if osc.State() != StateSilent {
		t.Errorf("expected SILENT, got %s", osc.State())
	}
}

func TestSoundAndSetFrequency(t *testing.T) {
	osc, dev, clk := newTestOscillator()
	osc.Activate()
	osc.ArmAt(t0.Add(time.Hour))

	osc.Sound()
	if clk.Pending() != 0 {
		t.Errorf("Sound should cancel the schedule, %d pending", clk.Pending())
	}

	osc.SetFrequency(AltHz)
	l, _ := dev.Current().Last()
	if l.Hz != AltHz || l.Gain != FullGain {
		t.Errorf("expected %d Hz at full gain, got %+v", AltHz, l)
	}
}

func TestSetLevelErrorIsLogged(t *testing.T) {
	osc, dev, _ := newTestOscillator()
	osc.Activate()
	dev.Current().SetError = errors.New("bus error")

	osc.Sound()

	if osc.State() != StateRinging {
		t.Errorf("state should advance even when the device errors, got %s", osc.State())
	}
}

func TestOutputBeeper(t *testing.T) {
	clk := clock.NewFake(t0)
	dev := &FakeDevice{}
	b := NewOutputBeeper(clk, dev.Open)

	if err := b.Beep(BaseHz, 500*time.Millisecond); err != nil {
		t.Fatalf("Beep: %v", err)
	}
	out := dev.Current()
	if l, _ := out.Last(); !l.Audible() || l.Hz != BaseHz {
		t.Errorf("expected audible %d Hz, got %+v", BaseHz, l)
	}

	clk.Advance(500 * time.Millisecond)
	if l, _ := out.Last(); l.Audible() {
		t.Error("expected silence after the beep")
	}
	if !out.Closed {
		t.Error("expected output closed after the beep")
	}
}

func TestOutputBeeper_OpenError(t *testing.T) {
	dev := &FakeDevice{OpenError: errors.New("busy")}
	b := NewOutputBeeper(clock.NewFake(t0), dev.Open)
	if err := b.Beep(BaseHz, time.Second); err == nil {
		t.Error("expected error")
	}
	if err := NewOutputBeeper(clock.NewFake(t0), nil).Beep(BaseHz, time.Second); err == nil {
		t.Error("expected error without opener")
	}
}
