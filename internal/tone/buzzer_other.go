//go:build !linux

package tone

import "errors"

// Buzzer wiring defaults (BCM numbering).
const (
	DefaultChip = "gpiochip0"
	DefaultPin  = 18
)

// NewBuzzerOpener returns an Opener that always fails on non-Linux platforms.
func NewBuzzerOpener(chipName string, pin int) Opener {
	return func() (Output, error) {
		return nil, errors.New("tone: gpio buzzer not supported on this platform (requires Linux)")
	}
}
