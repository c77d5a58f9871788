// Package seat holds the per-seat state shared by the controller tasks.
package seat

import (
	"fmt"
	"sync"
	"time"

	"codeberg.org/mutker/seatctl/internal/errors"
)

// ID identifies one of the two seats.
type ID int

const (
	Driver ID = iota
	Passenger
)

// All lists the seats in the order they are evaluated.
var All = [...]ID{Driver, Passenger}

func (id ID) String() string {
	switch id {
	case Driver:
		return "Driver"
	case Passenger:
		return "Passenger"
	default:
		return fmt.Sprintf("Seat(%d)", int(id))
	}
}

// Valid reports whether id names a known seat.
func (id ID) Valid() bool {
	return id == Driver || id == Passenger
}

// Intensity is the discrete heater output level. The numeric values are the
// wire codes used in published payloads; the zero value is not a level.
type Intensity uint8

const (
	Low    Intensity = 1
	Medium Intensity = 2
	High   Intensity = 3
	Off    Intensity = 4
)

func (i Intensity) String() string {
	switch i {
	case Off:
		return "OFF"
	case Low:
		return "LOW"
	case Medium:
		return "MEDIUM"
	case High:
		return "HIGH"
	default:
		return fmt.Sprintf("Intensity(%d)", uint8(i))
	}
}

// Valid reports whether i is one of the four heater levels.
func (i Intensity) Valid() bool {
	return i >= Low && i <= Off
}

// Temperature is a calibrated seat temperature in whole degrees Celsius.
type Temperature int

// Requested temperatures selected by successive button presses.
const (
	RequestOff    Temperature = 0
	RequestLow    Temperature = 25
	RequestMedium Temperature = 30
	RequestHigh   Temperature = 35
)

var requestCycle = [4]Temperature{RequestOff, RequestLow, RequestMedium, RequestHigh}

// RequestFor maps a press count onto the requested temperature.
func RequestFor(pressCount int) Temperature {
	return requestCycle[((pressCount%len(requestCycle))+len(requestCycle))%len(requestCycle)]
}

// FailureRecord is the latched description of the most recent sensor fault.
type FailureRecord struct {
	Message string
	// Timestamp is the monotonic time since controller start.
	Timestamp time.Duration
	Intensity Intensity
}

// State is a point-in-time copy of a seat channel.
type State struct {
	ID         ID
	Requested  Temperature
	PressCount int
	Current    Temperature
	Intensity  Intensity
	Fault      bool
	Failure    *FailureRecord
}

// Channel is the mutable state of one seat. All fields are guarded by mu so
// readers on other tasks never observe a partially applied update.
type Channel struct {
	mu         sync.RWMutex
	id         ID
	requested  Temperature
	pressCount int
	current    Temperature
	intensity  Intensity
	fault      bool
	failure    *FailureRecord
}

// NewChannel returns the startup state: heating off, nothing requested.
func NewChannel(id ID) *Channel {
	return &Channel{
		id:        id,
		requested: RequestOff,
		intensity: Off,
	}
}

// ID returns the seat this channel belongs to.
func (c *Channel) ID() ID {
	return c.id
}

// Press advances the request cycle by one and returns the new press count
// and requested temperature.
func (c *Channel) Press() (int, Temperature) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pressCount = (c.pressCount + 1) % len(requestCycle)
	c.requested = requestCycle[c.pressCount]

	return c.pressCount, c.requested
}

// SetCurrent stores the latest calibrated sample.
func (c *Channel) SetCurrent(t Temperature) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Current returns the latest calibrated sample.
func (c *Channel) Current() Temperature {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Intensity returns the heater level.
func (c *Channel) Intensity() Intensity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.intensity
}

// SetIntensity stores a new heater level. Values outside the ladder are rejected
// so the stored level is always one of the four defined ones.
func (c *Channel) SetIntensity(i Intensity) error {
	if !i.Valid() {
		return errors.New().WithData(errors.ErrInvalidLevel, uint8(i))
	}

	c.mu.Lock()
	c.intensity = i
	c.mu.Unlock()

	return nil
}

// Decide applies fn to the requested and current temperatures under one lock
// and stores the level it returns when changed is true. A faulted seat is left
// untouched. It returns the level before and after.
func (c *Channel) Decide(fn func(requested, current Temperature) (Intensity, bool)) (prev, level Intensity, changed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev = c.intensity
	if c.fault {
		return prev, prev, false
	}

	level, changed = fn(c.requested, c.current)
	if !changed || !level.Valid() {
		return prev, prev, false
	}
	c.intensity = level

	return prev, level, true
}

// Fail forces the heater off and latches a failure record carrying the level
// the heater had before, in one step. It returns that level and whether the
// seat was healthy before.
func (c *Channel) Fail(message string, at time.Duration) (Intensity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.intensity
	c.intensity = Off
	c.failure = &FailureRecord{Message: message, Timestamp: at, Intensity: prev}
	rising := !c.fault
	c.fault = true

	return prev, rising
}

// Faulted reports whether the last validated sample was out of range.
func (c *Channel) Faulted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fault
}

// ClearFault marks the sensor reading healthy again. The failure record is kept.
// It returns whether the seat was faulted before.
func (c *Channel) ClearFault() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	falling := c.fault
	c.fault = false

	return falling
}

// LastFailure returns the latched failure record, if any.
func (c *Channel) LastFailure() (FailureRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.failure == nil {
		return FailureRecord{}, false
	}

	return *c.failure, true
}

// Snapshot returns a consistent copy of the channel.
func (c *Channel) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := State{
		ID:         c.id,
		Requested:  c.requested,
		PressCount: c.pressCount,
		Current:    c.current,
		Intensity:  c.intensity,
		Fault:      c.fault,
	}
	if c.failure != nil {
		f := *c.failure
		s.Failure = &f
	}

	return s
}

// Seats is the pair of channels owned by the process.
type Seats [2]*Channel

// NewSeats creates both channels in their startup state.
func NewSeats() Seats {
	return Seats{NewChannel(Driver), NewChannel(Passenger)}
}

// Get returns the channel for id.
func (s Seats) Get(id ID) *Channel {
	return s[id]
}
