// Package mqtt publishes seat status snapshots and sensor fault events.
package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"codeberg.org/mutker/seatctl/internal/controller"
	"codeberg.org/mutker/seatctl/internal/errors"
	"codeberg.org/mutker/seatctl/internal/seat"
	"codeberg.org/mutker/seatctl/internal/telemetry"
	"codeberg.org/mutker/seatctl/internal/timing"
)

const (
	DefaultTopicPrefix = "seatctl"
	DefaultClientID    = "seatctl"

	statusSuffix       = "/status"
	faultSuffix        = "/fault"
	availabilitySuffix = "/availability"

	availabilityOnline  = "online"
	availabilityOffline = "offline"
)

// Client is the subset of an MQTT client the publisher needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Close() error
}

// Config selects the broker and topic namespace.
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	Timeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.ClientID == "" {
		c.ClientID = DefaultClientID
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = DefaultTopicPrefix
	}
	c.TopicPrefix = strings.TrimSuffix(c.TopicPrefix, "/")
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	return c
}

// StatusPayload is the retained per-frame status message.
type StatusPayload struct {
	Timestamp string           `json:"timestamp"`
	Driver    SeatPayload      `json:"driver"`
	Passenger SeatPayload      `json:"passenger"`
	CPULoad   int              `json:"cpu_load"`
	Tasks     map[string]int64 `json:"tasks_ms"`
}

// SeatPayload is one seat inside a status message.
type SeatPayload struct {
	Heater    string `json:"heater"`
	Level     uint8  `json:"level"`
	Requested int    `json:"requested"`
	Current   int    `json:"current"`
	Fault     bool   `json:"fault"`
}

// FaultPayload announces a sensor fault edge.
type FaultPayload struct {
	Seat          string `json:"seat"`
	Active        bool   `json:"active"`
	Message       string `json:"message,omitempty"`
	PreviousLevel string `json:"previous_level,omitempty"`
	UptimeMS      int64  `json:"uptime_ms,omitempty"`
	Timestamp     string `json:"timestamp"`
}

func seatPayload(s seat.State) SeatPayload {
	return SeatPayload{
		Heater:    s.Intensity.String(),
		Level:     uint8(s.Intensity),
		Requested: int(s.Requested),
		Current:   int(s.Current),
		Fault:     s.Fault,
	}
}

// FormatStatus creates the JSON payload for a telemetry snapshot.
func FormatStatus(snap *telemetry.Snapshot) ([]byte, error) {
	tasks := make(map[string]int64, len(snap.Timing.Busy))
	for task, d := range snap.Timing.Busy {
		tasks[timing.Task(task).String()] = d.Milliseconds()
	}

	return json.Marshal(StatusPayload{
		Timestamp: snap.Timestamp.UTC().Format(time.RFC3339),
		Driver:    seatPayload(snap.Seats[seat.Driver]),
		Passenger: seatPayload(snap.Seats[seat.Passenger]),
		CPULoad:   snap.Timing.Load,
		Tasks:     tasks,
	})
}

// FormatFault creates the JSON payload for a fault edge.
func FormatFault(ev controller.FaultEvent, now time.Time) ([]byte, error) {
	p := FaultPayload{
		Seat:      strings.ToLower(ev.Seat.String()),
		Active:    ev.Active,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
	if ev.Active {
		p.Message = ev.Record.Message
		p.PreviousLevel = ev.Record.Intensity.String()
		p.UptimeMS = ev.Record.Timestamp.Milliseconds()
	}
	return json.Marshal(p)
}

// Publisher is a telemetry sink and fault reporter on top of a Client.
type Publisher struct {
	client Client
	cfg    Config
	now    func() time.Time
}

// NewPublisher wraps client and announces the service as online.
func NewPublisher(client Client, cfg Config) (*Publisher, error) {
	cfg = cfg.withDefaults()
	p := &Publisher{client: client, cfg: cfg, now: time.Now}

	if err := client.Publish(p.AvailabilityTopic(), 1, true, []byte(availabilityOnline)); err != nil {
		return nil, errors.New().Wrap(errors.ErrMQTTPublish, err)
	}

	return p, nil
}

func (p *Publisher) StatusTopic() string       { return p.cfg.TopicPrefix + statusSuffix }
func (p *Publisher) FaultTopic() string        { return p.cfg.TopicPrefix + faultSuffix }
func (p *Publisher) AvailabilityTopic() string { return p.cfg.TopicPrefix + availabilitySuffix }

// Record publishes snap as the retained status message.
func (p *Publisher) Record(ctx context.Context, snap *telemetry.Snapshot) error {
	if snap == nil {
		return errors.New().New(errors.ErrInvalidArgument)
	}

	payload, err := FormatStatus(snap)
	if err != nil {
		return errors.New().Wrap(errors.ErrMQTTPublish, err)
	}

	return p.publish(ctx, p.StatusTopic(), 0, true, payload)
}

// ReportFault publishes a fault edge with at-least-once delivery.
func (p *Publisher) ReportFault(ctx context.Context, ev controller.FaultEvent) error {
	payload, err := FormatFault(ev, p.now())
	if err != nil {
		return errors.New().Wrap(errors.ErrMQTTPublish, err)
	}

	return p.publish(ctx, p.FaultTopic(), 1, false, payload)
}

func (p *Publisher) publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return errors.New().Wrap(errors.ErrTimeout, err)
	}

	if err := p.client.Publish(topic, qos, retained, payload); err != nil {
		return errors.New().Wrap(errors.ErrMQTTPublish, err).WithMessage("failed to publish to " + topic)
	}

	return nil
}

// Close marks the service offline and disconnects.
func (p *Publisher) Close() error {
	if err := p.client.Publish(p.AvailabilityTopic(), 1, true, []byte(availabilityOffline)); err != nil {
		_ = p.client.Close()
		return errors.New().Wrap(errors.ErrMQTTPublish, err)
	}
	return p.client.Close()
}
