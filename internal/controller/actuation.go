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

type lineWrite struct {
	out hardware.Output
	on  bool
}

// Output sequences per level. The de-asserted line is written first.
var heaterWrites = map[seat.Intensity][2]lineWrite{
	seat.Off:    {{hardware.HeaterA, false}, {hardware.HeaterB, false}},
	seat.Low:    {{hardware.HeaterB, false}, {hardware.HeaterA, true}},
	seat.Medium: {{hardware.HeaterA, false}, {hardware.HeaterB, true}},
	seat.High:   {{hardware.HeaterA, true}, {hardware.HeaterB, true}},
}

// ActuationDriver mirrors each seat's heater level onto its output pair.
type ActuationDriver struct {
	seats   seat.Seats
	outputs hardware.Outputs
	hub     *signal.Hub
	table   *timing.Table
	settle  time.Duration
	log     logger.Logger
}

func NewActuationDriver(seats seat.Seats, outputs hardware.Outputs, hub *signal.Hub, table *timing.Table, settle time.Duration, log logger.Logger) *ActuationDriver {
	return &ActuationDriver{
		seats:   seats,
		outputs: outputs,
		hub:     hub,
		table:   table,
		settle:  settle,
		log:     log,
	}
}

// Apply writes the outputs of both seats, holding each seat for the settle
// delay. It returns early only when ctx is done.
func (d *ActuationDriver) Apply(ctx context.Context) error {
	for _, id := range seat.All {
		d.write(id)

		if err := sleep(ctx, d.settle); err != nil {
			return err
		}
	}

	return nil
}

func (d *ActuationDriver) write(id seat.ID) {
	defer d.table.Track(timing.Actuation)()

	level := d.seats.Get(id).Intensity()
	for _, w := range heaterWrites[level] {
		if err := d.outputs.Set(id, w.out, w.on); err != nil {
			d.log.Error().Err(err).
				Str("seat", id.String()).
				Str("output", w.out.String()).
				Msg("Failed to drive heater output")
		}
	}
}

// Run applies the outputs on every IntensityUpdated until ctx is done.
func (d *ActuationDriver) Run(ctx context.Context) error {
	for {
		if _, err := d.hub.Wait(ctx, signal.Actuation); err != nil {
			return nil
		}
		if err := d.Apply(ctx); err != nil {
			return nil
		}
	}
}
