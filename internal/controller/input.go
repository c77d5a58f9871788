package controller

import (
	"context"
	"time"

	"codeberg.org/mutker/seatctl/internal/hardware"
	"codeberg.org/mutker/seatctl/internal/logger"
	"codeberg.org/mutker/seatctl/internal/seat"
	"codeberg.org/mutker/seatctl/internal/signal"
	"codeberg.org/mutker/seatctl/internal/timing"
)

// InputMonitor polls one seat button and advances the request cycle on each
// press.
type InputMonitor struct {
	ch       *seat.Channel
	buttons  hardware.Buttons
	hub      *signal.Hub
	table    *timing.Table
	task     timing.Task
	interval time.Duration
	log      logger.Logger

	held bool
}

// NewInputMonitor returns the monitor for the button of ch.
func NewInputMonitor(ch *seat.Channel, buttons hardware.Buttons, hub *signal.Hub, table *timing.Table, interval time.Duration, log logger.Logger) *InputMonitor {
	task := timing.DriverInput
	if ch.ID() == seat.Passenger {
		task = timing.PassengerInput
	}

	return &InputMonitor{
		ch:       ch,
		buttons:  buttons,
		hub:      hub,
		table:    table,
		task:     task,
		interval: interval,
		log:      log,
	}
}

// Poll reads the button once. It returns true when a new press was registered.
func (m *InputMonitor) Poll() bool {
	defer m.table.Track(m.task)()

	pressed, err := m.buttons.Pressed(m.ch.ID())
	if err != nil {
		m.log.Warn().Err(err).Str("seat", m.ch.ID().String()).Msg("Failed to read button")
		pressed = false
	}

	if !pressed {
		m.held = false
		return false
	}
	if m.held {
		return false
	}
	m.held = true

	count, requested := m.ch.Press()
	m.log.Debug().
		Str("seat", m.ch.ID().String()).
		Int("press_count", count).
		Int("requested", int(requested)).
		Msg("Heating level requested")

	m.hub.Raise(signal.RequestChanged)

	return true
}

// Run polls until ctx is done.
func (m *InputMonitor) Run(ctx context.Context) error {
	return every(ctx, m.interval, func() { m.Poll() })
}
