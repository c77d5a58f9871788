// Package diag reports seat sensor faults on the vehicle Redis diagnostics bus:
// the active fault set, the shared fault event stream and a notification channel.
package diag

import (
	"context"
	"time"

	"codeberg.org/mutker/seatctl/internal/controller"
	"codeberg.org/mutker/seatctl/internal/errors"
	"codeberg.org/mutker/seatctl/internal/logger"
	"codeberg.org/mutker/seatctl/internal/seat"
	"github.com/redis/go-redis/v9"
)

const (
	GroupName           = "seat-heater"
	FaultSetKey         = "seat-heater:fault"
	EventStream         = "events:faults"
	EventStreamMaxLen   = 1000
	NotificationChannel = "seat-heater"

	dialTimeout = 3 * time.Second
)

// Fault codes published on the bus.
const (
	FaultDriverSensorRange    = 1
	FaultPassengerSensorRange = 2
)

// FaultCode returns the bus code for a sensor range fault of id.
func FaultCode(id seat.ID) int {
	if id == seat.Passenger {
		return FaultPassengerSensorRange
	}
	return FaultDriverSensorRange
}

// EventValues builds the stream entry for ev. Cleared faults carry the negated code.
func EventValues(ev controller.FaultEvent) map[string]interface{} {
	code := FaultCode(ev.Seat)

	if !ev.Active {
		return map[string]interface{}{
			"group": GroupName,
			"code":  -code,
		}
	}

	return map[string]interface{}{
		"group":       GroupName,
		"code":        code,
		"description": ev.Record.Message,
		"level":       ev.Record.Intensity.String(),
		"ts":          ev.Record.Timestamp.Milliseconds(),
	}
}

// Reporter publishes fault edges to Redis.
type Reporter struct {
	client *redis.Client
	log    logger.Logger
}

// Dial connects to the Redis server at addr and checks it answers.
func Dial(ctx context.Context, addr string, log logger.Logger) (*Reporter, error) {
	if addr == "" {
		return nil, errors.New().WithMessage(errors.ErrDiagConnect, "no redis address configured")
	}

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DB:          0,
		DialTimeout: dialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.New().Wrap(errors.ErrDiagConnect, err)
	}

	log.Info().Str("addr", addr).Msg("Connected to diagnostics bus")

	return New(client, log), nil
}

// New wraps an existing client.
func New(client *redis.Client, log logger.Logger) *Reporter {
	return &Reporter{client: client, log: log}
}

// ReportFault records ev in the fault set and event stream and notifies
// listeners, in one pipeline.
func (r *Reporter) ReportFault(ctx context.Context, ev controller.FaultEvent) error {
	code := FaultCode(ev.Seat)

	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		if ev.Active {
			pipe.SAdd(ctx, FaultSetKey, code)
		} else {
			pipe.SRem(ctx, FaultSetKey, code)
		}

		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: EventStream,
			MaxLen: EventStreamMaxLen,
			Values: EventValues(ev),
		})

		pipe.Publish(ctx, NotificationChannel, "fault")

		return nil
	})
	if err != nil {
		return errors.New().Wrap(errors.ErrDiagReport, err)
	}

	r.log.Debug().Int("code", code).Bool("active", ev.Active).Msg("Reported fault to diagnostics bus")

	return nil
}

// Close closes the Redis connection.
func (r *Reporter) Close() error {
	return r.client.Close()
}
