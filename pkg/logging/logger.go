// Package logging provides structured logging configuration using zerolog.
//
// Loggers are built once at startup and handed to each component through its
// Config. Nothing in this package touches the global zerolog logger, so tests
// can capture a component's events by passing a logger that writes to a buffer.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
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

// Setup builds the root logger for the process.
func Setup(cfg Config) zerolog.Logger {
	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel converts LogLevel to zerolog.Level. Unknown values map to info.
func ParseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger derives a logger tagged with the given component name.
func NewLogger(base zerolog.Logger, component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Listing pages (url, page number, items on page)
//   - Individual job completion in the worker pool
//   - Request flow (method, url, status)
//
// Info: Normal operation events
//   - Orchestration run start/finish (mode, descriptors, records)
//   - Worker pool teardown
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Swallowed item fetch failures (concurrent mode)
//   - History store write failures
//   - Histogram rendering failures
//
// Error: Error conditions requiring attention
//   - Listing failures
//   - Aborted runs (sequential mode)
//   - Recovered job panics and batch coordination faults
//
// Context Fields:
//   - component: package-level component name
//   - run_id: orchestration run identifier
//   - url: upstream URL
//   - status: HTTP status code
//   - mode: execution mode (sequential, concurrent)
//   - worker_id: worker goroutine index
//   - duration: elapsed time
