// Package log provides the structured logging interface used by casebook estimators,
// case studies and the runner.
//
// The Logger interface keeps slog-style signatures (message plus alternating key/value
// fields) so call sites read the same whichever backend is installed. The production
// backend is zerolog; tests use TestLogger, which captures JSON lines in memory.
//
// Example usage:
//
//	logger := log.GetLogger().With(
//	    log.ModelNameKey, "LinearRegression",
//	    log.CaseStudyKey, "salary",
//	)
//	logger.Info("Model fitted",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, 200,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog calling
// convention.
type Logger interface {
	// Debug logs a debug-level message with optional key/value fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional key/value fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional key/value fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message. If the first field is an error it is attached
	// as the error attribute together with its stack trace, when one is recorded.
	//
	// Example:
	//   logger.Error("Case study failed",
	//       err,
	//       log.CaseStudyKey, "pid-gains",
	//   )
	Error(msg string, fields ...any)

	// With returns a Logger that adds fields to every subsequent record.
	With(fields ...any) Logger

	// Enabled reports whether records at level would be emitted.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level. Values match slog.Level.
type Level int

// Standard logging levels.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the upper-case level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates loggers. The runner uses it to hand each case study a logger
// named after it.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum level for loggers created by this provider.
	SetLevel(level Level)
}
