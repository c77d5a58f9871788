package telemetry

import (
	"io"
	"os"
	"time"

	"codeberg.org/mutker/seatctl/internal/errors"
)

const (
	// StdoutOutput selects the process standard output.
	StdoutOutput = "-"

	defaultInterval = time.Second
)

type Config struct {
	// Output is a device or file path, or "-" for stdout.
	Output   string
	Interval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Output:   StdoutOutput,
		Interval: defaultInterval,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Output == "" {
		return errFactory.New(ErrInvalidOutput)
	}
	if c.Interval < 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, "telemetry_interval")
	}
	return nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// OpenOutput opens the telemetry stream. A serial device or file is opened
// for writing without truncation.
func OpenOutput(path string) (io.WriteCloser, error) {
	if path == StdoutOutput {
		return nopCloser{os.Stdout}, nil
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.New().Wrap(ErrOpenOutput, err)
	}
	return f, nil
}
