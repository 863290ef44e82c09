// Package logging configures zerolog for the batch client and its tools.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Component names attached to every log line as the "component" field.
const (
	ComponentBatchClient   = "batch-client"
	ComponentAsyncResolver = "async-resolver"
	ComponentThrottle      = "throttle"
	ComponentMonitorStore  = "monitor-store"
	ComponentCLI           = "odata-batch"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level, err := ParseLevel(string(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to a zerolog.Level. "warning" is
// accepted as an alias for "warn".
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Batch classification (final or pending)
//   - Throttle state reads
//   - Monitor store reads and deletes
//
// Info: Normal operation events
//   - Monitors saved to the store
//   - Throttle windows opened
//
// Warn: Warning conditions that don't prevent operation
//   - Response body cleanup failures on 202 (CleanupWarning)
//   - Retry attempts
//   - Throttle state write failures
//   - Invalid 202 Accepted responses (protocol violations, malformed headers)
//
// Error: Error conditions requiring attention
//   - Failed batch requests (after retries)
//   - Redis failures on the throttle gate
//
// Context Fields:
//   - component: one of the Component* constants
//   - status: HTTP status code
//   - location: monitor URL of a pending batch
//   - retry_after: seconds from Retry-After
//   - error_class: client, server, throttled, network
//   - monitor_id: monitor store entry ID
