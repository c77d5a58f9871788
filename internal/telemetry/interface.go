package telemetry

import (
	"context"
	"time"

	"codeberg.org/mutker/seatctl/internal/seat"
	"codeberg.org/mutker/seatctl/internal/timing"
)

// Sink receives every snapshot the reporter renders.
type Sink interface {
	Record(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

// Snapshot is the state shown on one dashboard frame.
type Snapshot struct {
	Timestamp time.Time
	Seats     [2]seat.State
	Timing    timing.Snapshot
}
