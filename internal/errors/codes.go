package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrUnavailable     ErrorCode = "service_unavailable"
	ErrAlreadyRunning  ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"
	ErrInvalidRange    ErrorCode = "invalid_fault_range"
	ErrInvalidBackend  ErrorCode = "invalid_backend"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Hardware errors
	ErrHardwareInit ErrorCode = "hardware_init_failed"
	ErrButtonRead   ErrorCode = "button_read_failed"
	ErrSensorRead   ErrorCode = "sensor_read_failed"
	ErrOutputWrite  ErrorCode = "output_write_failed"

	// Application errors
	ErrInitApp       ErrorCode = "init_app_failed"
	ErrMainLoop      ErrorCode = "main_loop_failed"
	ErrTaskFailed    ErrorCode = "task_failed"
	ErrTelemetryOut  ErrorCode = "telemetry_output_failed"
	ErrResetOutputs  ErrorCode = "reset_outputs_failed"
	ErrInvalidSeat   ErrorCode = "invalid_seat"
	ErrInvalidLevel  ErrorCode = "invalid_intensity"
	ErrUnknownSignal ErrorCode = "unknown_signal"

	// Operation errors
	ErrOperationFailed ErrorCode = "operation_failed"
	ErrTimeout         ErrorCode = "operation_timeout"

	// Metrics errors
	ErrInitMetrics    ErrorCode = "init_metrics_failed"
	ErrCollectMetrics ErrorCode = "collect_metrics_failed"
	ErrCloseMetrics   ErrorCode = "close_metrics_failed"

	// Messaging errors
	ErrMQTTConnect ErrorCode = "mqtt_connect_failed"
	ErrMQTTPublish ErrorCode = "mqtt_publish_failed"
	ErrDiagConnect ErrorCode = "diag_connect_failed"
	ErrDiagReport  ErrorCode = "diag_report_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:        "Internal error occurred",
	ErrInvalidArgument: "Invalid argument provided",
	ErrUnavailable:     "Service unavailable",
	ErrAlreadyRunning:  "Another instance is already running",
	ErrInvalidConfig:   "Invalid configuration",
	ErrReadConfig:      "Failed to read config file",
	ErrBindFlags:       "Failed to bind flags",
	ErrInvalidInterval: "Invalid interval value",
	ErrInvalidRange:    "Invalid sensor fault range",
	ErrInvalidBackend:  "Invalid hardware backend",
	ErrInvalidLogLevel: "Invalid log level",
	ErrInitFailed:      "Initialization failed",
	ErrShutdownFailed:  "Shutdown failed",
	ErrHardwareInit:    "Failed to initialize hardware",
	ErrButtonRead:      "Failed to read seat button",
	ErrSensorRead:      "Failed to read seat temperature sensor",
	ErrOutputWrite:     "Failed to write output line",
	ErrInitApp:         "Failed to initialize application",
	ErrMainLoop:        "Error in main loop",
	ErrTaskFailed:      "Controller task failed",
	ErrTelemetryOut:    "Failed to write telemetry frame",
	ErrResetOutputs:    "Failed to reset heater outputs",
	ErrInvalidSeat:     "Invalid seat",
	ErrInvalidLevel:    "Invalid heater intensity",
	ErrUnknownSignal:   "Unknown signal",
	ErrOperationFailed: "Operation failed",
	ErrTimeout:         "Operation timed out",
	ErrInitMetrics:     "Failed to initialize metrics",
	ErrCollectMetrics:  "Failed to collect metrics data",
	ErrCloseMetrics:    "Failed to close metrics connection",
	ErrMQTTConnect:     "Failed to connect to MQTT broker",
	ErrMQTTPublish:     "Failed to publish MQTT message",
	ErrDiagConnect:     "Failed to connect to diagnostics bus",
	ErrDiagReport:      "Failed to report fault",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
