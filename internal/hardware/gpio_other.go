//go:build !linux

package hardware

import (
	"codeberg.org/mutker/seatctl/internal/errors"
	"codeberg.org/mutker/seatctl/internal/seat"
)

// GPIO is not available on non-Linux platforms.
type GPIO struct{}

// NewGPIO returns an error on non-Linux platforms.
func NewGPIO(GPIOConfig) (*GPIO, error) {
	return nil, errors.New().WithMessage(errors.ErrHardwareInit, "GPIO requires the Linux character device")
}

// Pressed is not implemented on non-Linux platforms.
func (*GPIO) Pressed(seat.ID) (bool, error) {
	return false, errors.New().New(errors.ErrUnavailable)
}

// Set is not implemented on non-Linux platforms.
func (*GPIO) Set(seat.ID, Output, bool) error {
	return errors.New().New(errors.ErrUnavailable)
}

// Close is a no-op on non-Linux platforms.
func (*GPIO) Close() error {
	return nil
}
