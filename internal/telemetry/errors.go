package telemetry

import "codeberg.org/mutker/seatctl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidOutput = errors.ErrorCode("telemetry_invalid_output")

	// Output Errors
	ErrOpenOutput  = errors.ErrorCode("telemetry_open_output_failed")
	ErrWriteFrame  = errors.ErrTelemetryOut
	ErrCloseOutput = errors.ErrShutdownFailed
)
