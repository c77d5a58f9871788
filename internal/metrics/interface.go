package metrics

import (
	"codeberg.org/mutker/seatctl/internal/telemetry"
)

// Repository stores snapshots. Implementations may buffer; Close writes
// whatever is still buffered.
type Repository interface {
	Record(snapshot *telemetry.Snapshot) error
	Close() error
}

// Collector is a telemetry sink backed by a Repository.
type Collector interface {
	telemetry.Sink
	Enabled() bool
}
