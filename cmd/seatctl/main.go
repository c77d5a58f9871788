package main

import (
	"context"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"syscall"

	"codeberg.org/mutker/seatctl/internal/config"
	"codeberg.org/mutker/seatctl/internal/controller"
	"codeberg.org/mutker/seatctl/internal/diag"
	"codeberg.org/mutker/seatctl/internal/errors"
	"codeberg.org/mutker/seatctl/internal/hardware"
	"codeberg.org/mutker/seatctl/internal/logger"
	"codeberg.org/mutker/seatctl/internal/metrics"
	"codeberg.org/mutker/seatctl/internal/mqtt"
	"codeberg.org/mutker/seatctl/internal/pid"
	"codeberg.org/mutker/seatctl/internal/seat"
	"codeberg.org/mutker/seatctl/internal/telemetry"
	"github.com/spf13/pflag"
)

type app struct {
	cfg     *config.Config
	board   hardware.Board
	ctrl    *controller.Controller
	out     io.WriteCloser
	report  *telemetry.Reporter
	diag    *diag.Reporter
	closers []io.Closer
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	// Frames own stdout when the telemetry stream goes there.
	logOut := io.Writer(os.Stdout)
	if cfg.TelemetryOutput == telemetry.StdoutOutput {
		logOut = os.Stderr
	}
	logger.InitWithWriter(logOut, cfg.Level(), logger.IsService())
	logger.Debug().Str("file", cfg.ConfigFile).Msg("Config loaded")

	if err := pid.Write(cfg.PIDFile); err != nil {
		logger.Error().Err(err).Msg("Failed to write PID file")
		return 1
	}
	defer func() {
		if err := pid.Remove(cfg.PIDFile); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize")
		return 1
	}
	defer a.cleanup()

	go handleSignals(ctx, cancel, a.board)

	if err := a.ctrl.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Error in main loop")
		return 1
	}

	return 0
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	log := logger.Default()

	board, err := hardware.Open(cfg.Hardware())
	if err != nil {
		return nil, err
	}
	a.board = board
	a.closers = append(a.closers, board)
	log.Info().Str("backend", cfg.Backend).Msg("Hardware ready")

	var (
		reporters []controller.FaultReporter
		sinks     []telemetry.Sink
	)

	if cfg.RedisAddr != "" {
		d, err := diag.Dial(ctx, cfg.RedisAddr, log.With("diag"))
		if err != nil {
			a.cleanup()
			return nil, err
		}
		a.diag = d
		reporters = append(reporters, d)
	}

	if cfg.MQTTBroker != "" {
		client, err := mqtt.Dial(cfg.MQTT())
		if err != nil {
			a.cleanup()
			return nil, err
		}
		pub, err := mqtt.NewPublisher(client, cfg.MQTT())
		if err != nil {
			client.Close()
			a.cleanup()
			return nil, err
		}
		reporters = append(reporters, pub)
		sinks = append(sinks, pub)
		log.Info().Str("broker", cfg.MQTTBroker).Msg("Publishing status over MQTT")
	}

	collector, err := metrics.NewService(cfg.MetricsConfig(), log.With("metrics"))
	if err != nil {
		log.Warn().Err(err).Msg("Metrics disabled")
	} else if collector.Enabled() {
		sinks = append(sinks, collector)
	}

	ctrl, err := controller.New(cfg.Controller(), board, log.With("controller"),
		controller.WithFaultReporters(reporters...))
	if err != nil {
		a.closeSinks(sinks)
		a.cleanup()
		return nil, err
	}
	a.ctrl = ctrl

	out, err := telemetry.OpenOutput(cfg.TelemetryOutput)
	if err != nil {
		a.closeSinks(sinks)
		a.cleanup()
		return nil, err
	}
	a.out = out

	report, err := telemetry.NewReporter(cfg.Telemetry(), out, ctrl.Seats(), ctrl.Hub(), ctrl.Table(),
		log.With("telemetry"), sinks...)
	if err != nil {
		a.closeSinks(sinks)
		a.cleanup()
		return nil, err
	}
	a.report = report
	ctrl.Add("telemetry", report)

	return a, nil
}

func (a *app) closeSinks(sinks []telemetry.Sink) {
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close sink")
		}
	}
}

// handleSignals cancels ctx on SIGINT or SIGTERM. On the simulated board
// SIGUSR1 and SIGUSR2 press the driver and passenger buttons.
func handleSignals(ctx context.Context, cancel context.CancelFunc, board hardware.Board) {
	sigs := make(chan os.Signal, 1)
	ossignal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	defer ossignal.Stop(sigs)

	sim, _ := board.(*hardware.Sim)

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-sigs:
			switch s {
			case syscall.SIGUSR1, syscall.SIGUSR2:
				if sim == nil {
					logger.Debug().Str("signal", s.String()).Msg("Ignoring button signal on hardware board")
					continue
				}
				id := seat.Driver
				if s == syscall.SIGUSR2 {
					id = seat.Passenger
				}
				sim.Press(id)
				logger.Info().Str("seat", id.String()).Msg("Simulated button press")
			default:
				logger.Info().Msg("Received termination signal.")
				cancel()
				return
			}
		}
	}
}

func (a *app) cleanup() {
	if a.report != nil {
		if err := a.report.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close telemetry sinks")
		}
	}
	if a.out != nil {
		if err := a.out.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close telemetry output")
		}
	}
	if a.diag != nil {
		if err := a.diag.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close diagnostics bus")
		}
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to release hardware")
		}
	}
	logger.Info().Msg("Exiting...")
}
