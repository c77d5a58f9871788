// Package telemetry renders the seat dashboard onto the telemetry stream and
// forwards each snapshot to optional sinks.
package telemetry

import (
	"bytes"
	"context"
	"io"
	"time"

	"codeberg.org/mutker/seatctl/internal/errors"
	"codeberg.org/mutker/seatctl/internal/logger"
	"codeberg.org/mutker/seatctl/internal/seat"
	"codeberg.org/mutker/seatctl/internal/signal"
	"codeberg.org/mutker/seatctl/internal/timing"
)

const sinkTimeout = 2 * time.Second

// Reporter emits one frame per IntensityUpdated, at most once per interval.
type Reporter struct {
	cfg   Config
	out   io.Writer
	seats seat.Seats
	hub   *signal.Hub
	table *timing.Table
	log   logger.Logger
	sinks []Sink
	now   func() time.Time

	buf bytes.Buffer
}

func NewReporter(cfg Config, out io.Writer, seats seat.Seats, hub *signal.Hub, table *timing.Table, log logger.Logger, sinks ...Sink) (*Reporter, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}
	if out == nil {
		return nil, errFactory.New(ErrInvalidOutput)
	}

	return &Reporter{
		cfg:   cfg,
		out:   out,
		seats: seats,
		hub:   hub,
		table: table,
		log:   log,
		sinks: sinks,
		now:   time.Now,
	}, nil
}

// Snapshot captures both seats and the timing table.
func (r *Reporter) Snapshot() *Snapshot {
	snap := &Snapshot{
		Timestamp: r.now(),
		Timing:    r.table.Snapshot(),
	}
	for _, id := range seat.All {
		snap.Seats[id] = r.seats.Get(id).Snapshot()
	}
	return snap
}

// Report renders and writes one frame, then hands the snapshot to the sinks.
// The frame goes out in a single write. Sinks are skipped when the frame
// could not be written.
func (r *Reporter) Report(ctx context.Context) error {
	snap, err := r.emit()
	if err != nil {
		return err
	}

	for _, s := range r.sinks {
		sctx, cancel := context.WithTimeout(ctx, sinkTimeout)
		if err := s.Record(sctx, snap); err != nil {
			r.log.Warn().Err(err).Msg("Failed to record telemetry snapshot")
		}
		cancel()
	}

	return nil
}

func (r *Reporter) emit() (*Snapshot, error) {
	defer r.table.Track(timing.Telemetry)()

	snap := r.Snapshot()

	r.buf.Reset()
	if err := Render(&r.buf, snap); err != nil {
		return nil, errors.New().Wrap(ErrWriteFrame, err).WithMessage("Failed to render telemetry frame")
	}

	if _, err := r.out.Write(r.buf.Bytes()); err != nil {
		return nil, errors.New().Wrap(ErrWriteFrame, err)
	}

	return snap, nil
}

// Run reports on every IntensityUpdated until ctx is done, pausing for the
// configured interval after each frame.
func (r *Reporter) Run(ctx context.Context) error {
	for {
		if _, err := r.hub.Wait(ctx, signal.Telemetry); err != nil {
			return nil
		}

		if err := r.Report(ctx); err != nil {
			r.log.Error().Err(err).Msg("Telemetry frame dropped")
		}

		t := time.NewTimer(r.cfg.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// Close closes every sink.
func (r *Reporter) Close() error {
	var first error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, first)
	}
	return nil
}
