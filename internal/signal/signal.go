// Package signal coordinates the controller tasks. Each consumer owns its own
// pending bits so a raised signal is observed once by every subscriber.
package signal

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"codeberg.org/mutker/seatctl/internal/errors"
)

// Signal is a single notification kind.
type Signal uint8

const (
	RequestChanged Signal = 1 << iota
	TemperatureUpdated
	IntensityUpdated
)

func (s Signal) String() string {
	switch s {
	case RequestChanged:
		return "request_changed"
	case TemperatureUpdated:
		return "temperature_updated"
	case IntensityUpdated:
		return "intensity_updated"
	default:
		return fmt.Sprintf("signal(%d)", uint8(s))
	}
}

// Set is a collection of signals.
type Set uint8

// Has reports whether sig is in the set.
func (s Set) Has(sig Signal) bool {
	return s&Set(sig) != 0
}

// Empty reports whether no signal is set.
func (s Set) Empty() bool {
	return s == 0
}

func (s Set) String() string {
	if s == 0 {
		return "none"
	}

	var names []string
	for _, sig := range []Signal{RequestChanged, TemperatureUpdated, IntensityUpdated} {
		if s.Has(sig) {
			names = append(names, sig.String())
		}
	}

	return strings.Join(names, "|")
}

// Of builds a Set from individual signals.
func Of(signals ...Signal) Set {
	var s Set
	for _, sig := range signals {
		s |= Set(sig)
	}
	return s
}

// Consumer identifies a task that waits on the hub.
type Consumer uint8

const (
	Decision Consumer = iota
	Actuation
	Fault
	Telemetry

	numConsumers
)

func (c Consumer) String() string {
	switch c {
	case Decision:
		return "decision"
	case Actuation:
		return "actuation"
	case Fault:
		return "fault"
	case Telemetry:
		return "telemetry"
	default:
		return fmt.Sprintf("consumer(%d)", uint8(c))
	}
}

const allSignals = Set(RequestChanged | TemperatureUpdated | IntensityUpdated)

type slot struct {
	mask    Set
	pending Set
	notify  chan struct{}
}

// Hub holds the subscriptions and pending bits of every consumer.
type Hub struct {
	mu    sync.Mutex
	slots [numConsumers]slot
}

// NewHub returns a hub with no subscriptions.
func NewHub() *Hub {
	h := &Hub{}
	for i := range h.slots {
		h.slots[i].notify = make(chan struct{})
	}
	return h
}

// Subscribe adds signals to the set consumer waits on.
func (h *Hub) Subscribe(consumer Consumer, signals ...Signal) error {
	if consumer >= numConsumers {
		return errors.New().WithData(errors.ErrInvalidArgument, consumer)
	}

	mask := Of(signals...)
	if mask&^allSignals != 0 {
		return errors.New().WithData(errors.ErrUnknownSignal, uint8(mask&^allSignals))
	}

	h.mu.Lock()
	h.slots[consumer].mask |= mask
	h.mu.Unlock()

	return nil
}

// Raise sets sig for every consumer subscribed to it.
func (h *Hub) Raise(sig Signal) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.slots {
		h.set(&h.slots[i], sig)
	}
}

// RaiseFor sets sig for one consumer only. It is a no-op when the consumer is
// not subscribed to sig.
func (h *Hub) RaiseFor(sig Signal, consumer Consumer) {
	if consumer >= numConsumers {
		return
	}

	h.mu.Lock()
	h.set(&h.slots[consumer], sig)
	h.mu.Unlock()
}

func (h *Hub) set(s *slot, sig Signal) {
	if s.mask&Set(sig) == 0 {
		return
	}

	wasEmpty := s.pending == 0
	s.pending |= Set(sig)

	if wasEmpty {
		close(s.notify)
		s.notify = make(chan struct{})
	}
}

// Wait blocks until any signal pending for consumer is set, clears all of them
// and returns what was observed. It only returns early when ctx is done.
func (h *Hub) Wait(ctx context.Context, consumer Consumer) (Set, error) {
	if consumer >= numConsumers {
		return 0, errors.New().WithData(errors.ErrInvalidArgument, consumer)
	}

	for {
		h.mu.Lock()
		s := &h.slots[consumer]
		if got := s.pending; got != 0 {
			s.pending = 0
			h.mu.Unlock()
			return got, nil
		}
		notify := s.notify
		h.mu.Unlock()

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-notify:
		}
	}
}

// Pending returns the bits set for consumer without clearing them.
func (h *Hub) Pending(consumer Consumer) Set {
	if consumer >= numConsumers {
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	return h.slots[consumer].pending
}
