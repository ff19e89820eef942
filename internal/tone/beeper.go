package tone

import (
	"fmt"
	"time"

	"github.com/sweeney/bread-timer/internal/clock"
	"github.com/sweeney/bread-timer/internal/logger"
)

// OutputBeeper plays each beep on a freshly opened output and releases it
// once the beep is over.
type OutputBeeper struct {
	clock clock.Clock
	open  Opener
}

// NewOutputBeeper creates a Beeper over the given opener.
func NewOutputBeeper(c clock.Clock, open Opener) *OutputBeeper {
	return &OutputBeeper{clock: c, open: open}
}

// Beep sounds hz for d. It returns once the tone has started.
func (b *OutputBeeper) Beep(hz int, d time.Duration) error {
	if b.open == nil {
		return fmt.Errorf("beep: no audio output configured")
	}
	out, err := b.open()
	if err != nil {
		return fmt.Errorf("beep: %w", err)
	}
	if err := out.Set(Level{Gain: FullGain, Hz: hz}); err != nil {
		out.Close()
		return fmt.Errorf("beep: %w", err)
	}
	b.clock.AfterFunc(d, func() {
		if err := out.Set(Level{Gain: 0, Hz: hz}); err != nil {
			logger.Warnf("tone: end beep: %v", err)
		}
		if err := out.Close(); err != nil {
			logger.Warnf("tone: close beep output: %v", err)
		}
	})
	return nil
}
