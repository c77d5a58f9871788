package controller

import (
	"context"
	"time"

	"codeberg.org/mutker/seatctl/internal/logger"
	"codeberg.org/mutker/seatctl/internal/timing"
)

// LoadEstimator periodically publishes the CPU load derived from the timing table.
type LoadEstimator struct {
	table    *timing.Table
	interval time.Duration
	log      logger.Logger
}

func NewLoadEstimator(table *timing.Table, interval time.Duration, log logger.Logger) *LoadEstimator {
	return &LoadEstimator{table: table, interval: interval, log: log}
}

// Measure computes and publishes the load once.
func (e *LoadEstimator) Measure() int {
	defer e.table.Track(timing.LoadEstimator)()

	load := timing.ComputeLoad(e.table.Busy(), e.table.Elapsed())
	e.table.SetLoad(load)

	e.log.Debug().Int("cpu_load", load).Msg("")

	return load
}

// Run measures once per interval until ctx is done.
func (e *LoadEstimator) Run(ctx context.Context) error {
	return every(ctx, e.interval, func() { e.Measure() })
}
