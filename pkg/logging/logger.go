// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
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

	// File, when set, additionally writes JSON logs to a rotating file.
	File string

	// MaxSizeMB is the size at which File is rotated.
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept.
	MaxBackups int
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Pretty:     false,
		Output:     os.Stderr,
		MaxSizeMB:  20,
		MaxBackups: 5,
	}
}

var (
	fileMu sync.Mutex
	file   *lumberjack.Logger
)

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	// The file always gets JSON, whatever the console format.
	if rotating := openFile(cfg); rotating != nil {
		out = io.MultiWriter(out, rotating)
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// openFile swaps in the rotating file writer for cfg, closing any previous one.
func openFile(cfg Config) *lumberjack.Logger {
	fileMu.Lock()
	defer fileMu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}
	if cfg.File == "" {
		return nil
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 20
	}
	file = &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    maxSize,
		MaxBackups: max(cfg.MaxBackups, 0),
		Compress:   true,
	}
	return file
}

// Close releases the log file opened by Setup, if any.
func Close() error {
	fileMu.Lock()
	defer fileMu.Unlock()

	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
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

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Chunk results (data or empty, attempt count)
//   - Partition plans (group size, chunk count)
//   - Worker start/stop
//
// Info: Normal operation events
//   - Dispatch start/complete
//   - Endpoint resolution
//   - Session connect
//
// Warn: Warning conditions that don't prevent operation
//   - Transient transport failures (retrying)
//   - Service error messages on a chunk
//   - Daily quota low (throttling active)
//   - Skipped time-series entries
//
// Error: Error conditions requiring attention
//   - Transport failures
//   - Daily quota critical (launch refused)
//   - Worker panics
//
// Context Fields:
//   - component: Package emitting the event
//   - request_id: One logical Datagrid or TimeSeries operation
//   - direction: Service direction (DataGrid_StandardAsync, TimeSeries)
//   - chunk: Zero-based chunk index
//   - endpoint: Proxy host:port
//   - status_code: HTTP status code
//   - error_class: Transport class or error kind
//   - remaining: Calls left in the daily quota
