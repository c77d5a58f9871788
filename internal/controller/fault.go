package controller

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/mutker/seatctl/internal/hardware"
	"codeberg.org/mutker/seatctl/internal/logger"
	"codeberg.org/mutker/seatctl/internal/seat"
	"codeberg.org/mutker/seatctl/internal/signal"
	"codeberg.org/mutker/seatctl/internal/timing"
)

const (
	faultQueueSize     = 16
	faultReportTimeout = 2 * time.Second
)

// FaultEvent is a change of a seat's sensor fault state.
type FaultEvent struct {
	Seat   seat.ID
	Active bool
	// Record is set when Active is true.
	Record seat.FailureRecord
}

// FaultReporter forwards fault edges to an external system.
type FaultReporter interface {
	ReportFault(ctx context.Context, ev FaultEvent) error
}

// FaultMonitor validates every sample against the trusted sensor range and
// forces a seat off while its reading is outside it.
type FaultMonitor struct {
	seats   seat.Seats
	outputs hardware.Outputs
	hub     *signal.Hub
	table   *timing.Table
	min     seat.Temperature
	max     seat.Temperature
	log     logger.Logger

	reporters []FaultReporter
	events    chan FaultEvent
}

func NewFaultMonitor(seats seat.Seats, outputs hardware.Outputs, hub *signal.Hub, table *timing.Table, minTemp, maxTemp seat.Temperature, log logger.Logger, reporters ...FaultReporter) *FaultMonitor {
	return &FaultMonitor{
		seats:     seats,
		outputs:   outputs,
		hub:       hub,
		table:     table,
		min:       minTemp,
		max:       maxTemp,
		log:       log,
		reporters: reporters,
		events:    make(chan FaultEvent, faultQueueSize),
	}
}

// FailureMessage is the record text for a reading outside the trusted range.
func FailureMessage(id seat.ID) string {
	return fmt.Sprintf("Invalid %s Temperature Sensor Range", id)
}

// Check validates both seats once.
func (m *FaultMonitor) Check() {
	defer m.table.Track(timing.Fault)()

	overridden := false
	cleared := false

	for _, id := range seat.All {
		ch := m.seats.Get(id)
		current := ch.Current()

		if current < m.min || current > m.max {
			prev, rising := ch.Fail(FailureMessage(id), m.table.Elapsed())
			if prev != seat.Off {
				overridden = true
			}
			m.setIndicator(id, true)

			if rising {
				rec, _ := ch.LastFailure()
				m.log.Warn().
					Str("seat", id.String()).
					Int("temperature", int(current)).
					Str("previous_level", prev.String()).
					Msg(rec.Message)
				m.publish(FaultEvent{Seat: id, Active: true, Record: rec})
			}

			continue
		}

		m.setIndicator(id, false)
		if ch.ClearFault() {
			cleared = true
			m.log.Info().
				Str("seat", id.String()).
				Int("temperature", int(current)).
				Msg("Temperature sensor back in range")
			m.publish(FaultEvent{Seat: id})
		}
	}

	if overridden {
		m.hub.Raise(signal.IntensityUpdated)
	}
	if cleared {
		m.hub.RaiseFor(signal.RequestChanged, signal.Decision)
	}
}

func (m *FaultMonitor) setIndicator(id seat.ID, on bool) {
	if err := m.outputs.Set(id, hardware.FaultIndicator, on); err != nil {
		m.log.Error().Err(err).Str("seat", id.String()).Msg("Failed to drive fault indicator")
	}
}

func (m *FaultMonitor) publish(ev FaultEvent) {
	if len(m.reporters) == 0 {
		return
	}

	select {
	case m.events <- ev:
	default:
		m.log.Warn().Str("seat", ev.Seat.String()).Msg("Fault report queue full, dropping event")
	}
}

// Run checks on every TemperatureUpdated until ctx is done.
func (m *FaultMonitor) Run(ctx context.Context) error {
	for {
		if _, err := m.hub.Wait(ctx, signal.Fault); err != nil {
			return nil
		}
		m.Check()
	}
}

// Dispatch delivers queued fault events to the reporters until ctx is done.
func (m *FaultMonitor) Dispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-m.events:
			m.deliver(ctx, ev)
		}
	}
}

func (m *FaultMonitor) deliver(ctx context.Context, ev FaultEvent) {
	for _, r := range m.reporters {
		rctx, cancel := context.WithTimeout(ctx, faultReportTimeout)
		if err := r.ReportFault(rctx, ev); err != nil {
			m.log.Warn().Err(err).Str("seat", ev.Seat.String()).Bool("active", ev.Active).Msg("Failed to report fault")
		}
		cancel()
	}
}
