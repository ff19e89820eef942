//go:build linux

package tone

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Buzzer wiring defaults (BCM numbering).
const (
	DefaultChip = "gpiochip0"
	DefaultPin  = 18
)

// BuzzerOutput drives an active buzzer on a GPIO output line. The buzzer
// generates its own tone, so only the audible/silent edge of a Level
// reaches the line.
type BuzzerOutput struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	high bool
}

// NewBuzzerOpener returns an Opener requesting pin on chip as an output
// that starts low.
func NewBuzzerOpener(chipName string, pin int) Opener {
	return func() (Output, error) {
		chip, err := gpiocdev.NewChip(chipName)
		if err != nil {
			return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
		}
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("bread-timer"))
		if err != nil {
			chip.Close()
			return nil, fmt.Errorf("request buzzer pin %d: %w", pin, err)
		}
		return &BuzzerOutput{chip: chip, line: line}, nil
	}
}

// Set drives the line high for audible levels and low otherwise.
func (b *BuzzerOutput) Set(l Level) error {
	high := l.Audible()
	if high == b.high {
		return nil
	}
	v := 0
	if high {
		v = 1
	}
	if err := b.line.SetValue(v); err != nil {
		return fmt.Errorf("set buzzer line: %w", err)
	}
	b.high = high
	return nil
}

// Close drives the line low and hands it back as an input with pull-down,
// matching the Pi boot default.
func (b *BuzzerOutput) Close() error {
	var errs []error
	if b.line != nil {
		if err := b.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("drive buzzer low: %w", err))
		}
		if err := b.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure buzzer pin: %w", err))
		}
		if err := b.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close buzzer pin: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
