// Package controller runs the closed-loop seat heater tasks: button polling,
// sensor sampling, level decisions, actuation, fault handling and load
// estimation.
package controller

import (
	"context"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/seatctl/internal/errors"
	"codeberg.org/mutker/seatctl/internal/hardware"
	"codeberg.org/mutker/seatctl/internal/logger"
	"codeberg.org/mutker/seatctl/internal/seat"
	"codeberg.org/mutker/seatctl/internal/signal"
	"codeberg.org/mutker/seatctl/internal/timing"
	"github.com/oklog/run"
)

// Config holds the task periods and the trusted sensor range.
type Config struct {
	ButtonInterval time.Duration
	SensorInterval time.Duration
	SettleDelay    time.Duration
	LoadInterval   time.Duration
	FaultMin       seat.Temperature
	FaultMax       seat.Temperature
}

// DefaultConfig returns the reference board timings.
func DefaultConfig() Config {
	return Config{
		ButtonInterval: 200 * time.Millisecond,
		SensorInterval: 500 * time.Millisecond,
		SettleDelay:    250 * time.Millisecond,
		LoadInterval:   2 * time.Second,
		FaultMin:       5,
		FaultMax:       40,
	}
}

// Validate checks that every period is positive and the range is ordered.
func (c Config) Validate() error {
	for name, d := range map[string]time.Duration{
		"button_interval": c.ButtonInterval,
		"sensor_interval": c.SensorInterval,
		"load_interval":   c.LoadInterval,
	} {
		if d <= 0 {
			return errors.New().WithData(errors.ErrInvalidInterval, name)
		}
	}
	if c.SettleDelay < 0 {
		return errors.New().WithData(errors.ErrInvalidInterval, "settle_delay")
	}
	if c.FaultMin > c.FaultMax {
		return errors.New().WithData(errors.ErrInvalidRange, [2]seat.Temperature{c.FaultMin, c.FaultMax})
	}
	return nil
}

// Task is anything the controller can supervise.
type Task interface {
	Run(ctx context.Context) error
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type namedTask struct {
	name string
	task Task
}

// Option configures a Controller.
type Option func(*Controller)

// WithFaultReporters forwards fault edges to reporters.
func WithFaultReporters(reporters ...FaultReporter) Option {
	return func(c *Controller) {
		c.reporters = append(c.reporters, reporters...)
	}
}

// WithTable uses table instead of a fresh wall clock table.
func WithTable(table *timing.Table) Option {
	return func(c *Controller) {
		c.table = table
	}
}

// Controller owns the shared state and supervises every task.
type Controller struct {
	cfg   Config
	board hardware.Board
	seats seat.Seats
	hub   *signal.Hub
	table *timing.Table
	log   logger.Logger

	reporters []FaultReporter

	Inputs    [2]*InputMonitor
	Sampler   *Sampler
	Decision  *DecisionEngine
	Actuation *ActuationDriver
	Fault     *FaultMonitor
	Load      *LoadEstimator

	extra   []namedTask
	running atomic.Bool
}

// New wires the hub subscriptions and builds every task.
func New(cfg Config, board hardware.Board, log logger.Logger, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if board == nil {
		return nil, errors.New().WithMessage(errors.ErrInvalidArgument, "hardware board is required")
	}

	c := &Controller{
		cfg:   cfg,
		board: board,
		seats: seat.NewSeats(),
		hub:   signal.NewHub(),
		log:   log,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.table == nil {
		c.table = timing.NewTable()
	}

	subscriptions := []struct {
		consumer signal.Consumer
		signals  []signal.Signal
	}{
		{signal.Decision, []signal.Signal{signal.TemperatureUpdated, signal.RequestChanged}},
		{signal.Actuation, []signal.Signal{signal.IntensityUpdated}},
		{signal.Fault, []signal.Signal{signal.TemperatureUpdated}},
		{signal.Telemetry, []signal.Signal{signal.IntensityUpdated}},
	}
	for _, s := range subscriptions {
		if err := c.hub.Subscribe(s.consumer, s.signals...); err != nil {
			return nil, errors.New().Wrap(errors.ErrInitApp, err)
		}
	}

	for _, id := range seat.All {
		c.Inputs[id] = NewInputMonitor(c.seats.Get(id), board, c.hub, c.table, cfg.ButtonInterval,
			log.With("input_"+id.String()))
	}
	c.Sampler = NewSampler(c.seats, board, c.hub, c.table, cfg.SensorInterval, log.With("sampler"))
	c.Decision = NewDecisionEngine(c.seats, c.hub, c.table, log.With("decision"))
	c.Actuation = NewActuationDriver(c.seats, board, c.hub, c.table, cfg.SettleDelay, log.With("actuation"))
	c.Fault = NewFaultMonitor(c.seats, board, c.hub, c.table, cfg.FaultMin, cfg.FaultMax, log.With("fault"), c.reporters...)
	c.Load = NewLoadEstimator(c.table, cfg.LoadInterval, log.With("load"))

	return c, nil
}

// Seats returns the shared seat channels.
func (c *Controller) Seats() seat.Seats { return c.seats }

// Hub returns the synchronization hub.
func (c *Controller) Hub() *signal.Hub { return c.hub }

// Table returns the task timing table.
func (c *Controller) Table() *timing.Table { return c.table }

// Add supervises an extra task alongside the built-in ones. It must be called
// before Run.
func (c *Controller) Add(name string, task Task) {
	c.extra = append(c.extra, namedTask{name: name, task: task})
}

func (c *Controller) tasks() []namedTask {
	tasks := []namedTask{
		{"input_driver", c.Inputs[seat.Driver]},
		{"input_passenger", c.Inputs[seat.Passenger]},
		{"sampler", c.Sampler},
		{"decision", c.Decision},
		{"actuation", c.Actuation},
		{"fault", c.Fault},
		{"fault_dispatch", TaskFunc(c.Fault.Dispatch)},
		{"load", c.Load},
	}
	return append(tasks, c.extra...)
}

// Run starts every task and blocks until ctx is done or a task fails. On the
// way out all outputs are driven low.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New().New(errors.ErrAlreadyRunning)
	}
	defer c.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g run.Group

	g.Add(func() error {
		<-ctx.Done()
		return nil
	}, func(error) {
		cancel()
	})

	for _, t := range c.tasks() {
		t := t
		g.Add(func() error {
			c.log.Debug().Str("task", t.name).Msg("Task started")
			if err := t.task.Run(ctx); err != nil {
				return errors.New().Wrap(errors.ErrTaskFailed, err).WithMessage("task " + t.name + " failed")
			}
			c.log.Debug().Str("task", t.name).Msg("Task stopped")
			return nil
		}, func(error) {
			cancel()
		})
	}

	c.log.Info().Msg("Seat heater controller started")

	err := g.Run()

	if rerr := hardware.ResetOutputs(c.board); rerr != nil {
		c.log.Error().Err(rerr).Msg("Failed to reset outputs")
		if err == nil {
			err = errors.New().Wrap(errors.ErrResetOutputs, rerr)
		}
	}

	c.log.Info().Msg("Seat heater controller stopped")

	return err
}
