package controller

import (
	"context"

	"codeberg.org/mutker/seatctl/internal/logger"
	"codeberg.org/mutker/seatctl/internal/seat"
	"codeberg.org/mutker/seatctl/internal/signal"
	"codeberg.org/mutker/seatctl/internal/timing"
)

// DecisionEngine recomputes heater levels whenever a request or a sample
// changes.
type DecisionEngine struct {
	seats seat.Seats
	hub   *signal.Hub
	table *timing.Table
	log   logger.Logger
}

func NewDecisionEngine(seats seat.Seats, hub *signal.Hub, table *timing.Table, log logger.Logger) *DecisionEngine {
	return &DecisionEngine{
		seats: seats,
		hub:   hub,
		table: table,
		log:   log,
	}
}

// Evaluate applies Decide to both seats, then raises IntensityUpdated and
// hands the latest sample to the FaultMonitor. A seat with a latched sensor
// fault stays off until the FaultMonitor clears it.
func (e *DecisionEngine) Evaluate() {
	defer e.table.Track(timing.Decision)()

	for _, id := range seat.All {
		prev, level, changed := e.seats.Get(id).Decide(Decide)
		if changed && level != prev {
			e.log.Debug().
				Str("seat", id.String()).
				Str("from", prev.String()).
				Str("to", level.String()).
				Msg("Heater level changed")
		}
	}

	e.hub.Raise(signal.IntensityUpdated)
	e.hub.RaiseFor(signal.TemperatureUpdated, signal.Fault)
}

// Run evaluates on every wake until ctx is done.
func (e *DecisionEngine) Run(ctx context.Context) error {
	for {
		if _, err := e.hub.Wait(ctx, signal.Decision); err != nil {
			return nil
		}
		e.Evaluate()
	}
}
