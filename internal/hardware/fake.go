package hardware

import (
	"sync"

	"codeberg.org/mutker/seatctl/internal/seat"
)

// Write is one recorded output change.
type Write struct {
	Seat   seat.ID
	Output Output
	On     bool
}

// Fake is a test double with settable inputs and a log of output writes.
type Fake struct {
	mu      sync.Mutex
	pressed [2]bool
	raw     [2]int
	outputs [2][numOutputs]bool
	writes  []Write

	// ButtonErr, SensorErr and OutputErr are returned by the matching calls when set.
	ButtonErr error
	SensorErr [2]error
	OutputErr error

	Closed bool
}

// NewFake returns a fake reading raw on both sensors.
func NewFake(raw [2]int) *Fake {
	return &Fake{raw: raw}
}

// SetPressed sets the button level of id.
func (f *Fake) SetPressed(id seat.ID, pressed bool) {
	f.mu.Lock()
	f.pressed[id] = pressed
	f.mu.Unlock()
}

// SetRaw sets the sensor reading of id.
func (f *Fake) SetRaw(id seat.ID, raw int) {
	f.mu.Lock()
	f.raw[id] = raw
	f.mu.Unlock()
}

// SetSensorErr makes the sensor of id fail with err, or succeed when err is nil.
func (f *Fake) SetSensorErr(id seat.ID, err error) {
	f.mu.Lock()
	f.SensorErr[id] = err
	f.mu.Unlock()
}

func (f *Fake) Pressed(id seat.ID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ButtonErr != nil {
		return false, f.ButtonErr
	}
	return f.pressed[id], nil
}

func (f *Fake) ReadRaw(id seat.ID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.SensorErr[id]; err != nil {
		return 0, err
	}
	return f.raw[id], nil
}

func (f *Fake) Set(id seat.ID, out Output, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.OutputErr != nil {
		return f.OutputErr
	}

	f.outputs[id][out] = on
	f.writes = append(f.writes, Write{Seat: id, Output: out, On: on})

	return nil
}

// Output returns the current level of out of id.
func (f *Fake) Output(id seat.ID, out Output) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outputs[id][out]
}

// Writes returns a copy of every recorded write.
func (f *Fake) Writes() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Write, len(f.writes))
	copy(out, f.writes)

	return out
}

// ResetWrites clears the write log.
func (f *Fake) ResetWrites() {
	f.mu.Lock()
	f.writes = nil
	f.mu.Unlock()
}

func (f *Fake) Close() error {
	err := ResetOutputs(f)

	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()

	return err
}
