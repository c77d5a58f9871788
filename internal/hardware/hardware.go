// Package hardware abstracts the seat buttons, temperature sensors and heater
// outputs. The linux backend drives GPIO through the character device and
// reads the sensors from the IIO sysfs tree; the simulated backend runs
// anywhere.
package hardware

import (
	"fmt"

	"codeberg.org/mutker/seatctl/internal/seat"
)

// Output names one of the three per-seat output lines.
type Output int

const (
	// HeaterA drives the low stage (green indicator on the reference board).
	HeaterA Output = iota
	// HeaterB drives the medium stage (blue indicator).
	HeaterB
	// FaultIndicator is the red sensor fault lamp.
	FaultIndicator

	numOutputs
)

func (o Output) String() string {
	switch o {
	case HeaterA:
		return "heater_a"
	case HeaterB:
		return "heater_b"
	case FaultIndicator:
		return "fault"
	default:
		return fmt.Sprintf("output(%d)", int(o))
	}
}

// Buttons reports the logical state of the seat buttons.
type Buttons interface {
	// Pressed returns true while the button of id is held down.
	Pressed(id seat.ID) (bool, error)
}

// Sensors reads raw converter values from the seat temperature sensors.
type Sensors interface {
	ReadRaw(id seat.ID) (int, error)
}

// Outputs writes the per-seat output lines.
type Outputs interface {
	Set(id seat.ID, out Output, on bool) error
}

// Board bundles every hardware concern the controller needs.
type Board interface {
	Buttons
	Sensors
	Outputs
	Close() error
}

// SeatLines are the GPIO line offsets used by one seat.
type SeatLines struct {
	Button  int
	HeaterA int
	HeaterB int
	Fault   int
}

func (l SeatLines) output(out Output) int {
	switch out {
	case HeaterA:
		return l.HeaterA
	case HeaterB:
		return l.HeaterB
	default:
		return l.Fault
	}
}

// GPIOConfig describes the GPIO chip and line mapping.
type GPIOConfig struct {
	Chip     string
	Consumer string
	Seats    [2]SeatLines
}

// ResetOutputs drives every output of both seats low. All lines are
// attempted; the first error is returned.
func ResetOutputs(o Outputs) error {
	var first error
	for _, id := range seat.All {
		for out := HeaterA; out < numOutputs; out++ {
			if err := o.Set(id, out, false); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
