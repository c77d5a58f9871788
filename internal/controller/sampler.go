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

// Sampler reads both seat sensors and publishes calibrated temperatures.
// Range checking is left to the FaultMonitor.
type Sampler struct {
	seats    seat.Seats
	sensors  hardware.Sensors
	hub      *signal.Hub
	table    *timing.Table
	interval time.Duration
	log      logger.Logger
}

func NewSampler(seats seat.Seats, sensors hardware.Sensors, hub *signal.Hub, table *timing.Table, interval time.Duration, log logger.Logger) *Sampler {
	return &Sampler{
		seats:    seats,
		sensors:  sensors,
		hub:      hub,
		table:    table,
		interval: interval,
		log:      log,
	}
}

// Sample reads both sensors once and raises TemperatureUpdated.
func (s *Sampler) Sample() {
	defer s.table.Track(timing.Sampler)()

	for _, id := range seat.All {
		raw, err := s.sensors.ReadRaw(id)
		if err != nil {
			s.log.Warn().Err(err).Str("seat", id.String()).Msg("Failed to read temperature sensor, keeping previous sample")
			continue
		}
		s.seats.Get(id).SetCurrent(seat.ScaleRaw(raw))
	}

	s.hub.Raise(signal.TemperatureUpdated)
}

// Run samples until ctx is done.
func (s *Sampler) Run(ctx context.Context) error {
	return every(ctx, s.interval, s.Sample)
}
