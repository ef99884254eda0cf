package lib

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// LogLevel defines the severity of log messages
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) hclogLevel() hclog.Level {
	switch l {
	case LogLevelDebug:
		return hclog.Debug
	case LogLevelWarn:
		return hclog.Warn
	case LogLevelError:
		return hclog.Error
	default:
		return hclog.Info
	}
}

// Logger provides structured key/value logging for the application
type Logger struct {
	hc hclog.Logger
}

// NewLogger creates a logger writing to stderr
func NewLogger(level LogLevel) *Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a logger writing to w. Useful for tests.
func NewLoggerWithWriter(level LogLevel, w io.Writer) *Logger {
	return &Logger{
		hc: hclog.New(&hclog.LoggerOptions{
			Name:   "fhirpush",
			Level:  level.hclogLevel(),
			Output: w,
		}),
	}
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields ...interface{}) {
	l.hc.Debug(message, fields...)
}

// Info logs an informational message
func (l *Logger) Info(message string, fields ...interface{}) {
	l.hc.Info(message, fields...)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields ...interface{}) {
	l.hc.Warn(message, fields...)
}

// Error logs an error message
func (l *Logger) Error(message string, fields ...interface{}) {
	l.hc.Error(message, fields...)
}

// With returns a logger that adds the given fields to every message
func (l *Logger) With(fields ...interface{}) *Logger {
	return &Logger{hc: l.hc.With(fields...)}
}

// SetLevel changes the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.hc.SetLevel(level.hclogLevel())
}

// LogRetry logs retry attempts
func LogRetry(logger *Logger, operation string, attempt int, maxRetries int, wait time.Duration, reason interface{}) {
	// Remove line breaks from operation to prevent log spoofing
	safeOperation := strings.ReplaceAll(operation, "\n", "")
	safeOperation = strings.ReplaceAll(safeOperation, "\r", "")
	logger.Warn(
		fmt.Sprintf("Retry %d/%d for: %s", attempt+1, maxRetries, safeOperation),
		"wait", wait,
		"reason", reason,
	)
}

// LogRunStarted logs the start of a batch run
func LogRunStarted(logger *Logger, runID string, dir string, files int) {
	logger.Info(
		"Upload run started",
		"run_id", runID,
		"dir", dir,
		"files", files,
	)
}

// LogRunCompleted logs the end of a batch run
func LogRunCompleted(logger *Logger, runID string, successful int, failed int, duration time.Duration) {
	logger.Info(
		"Upload run completed",
		"run_id", runID,
		"successful", successful,
		"failed", failed,
		"duration", duration,
	)
}

// LogServiceCall logs HTTP service calls
func LogServiceCall(logger *Logger, service string, endpoint string, method string) {
	logger.Debug(
		"Service call",
		"service", service,
		"endpoint", endpoint,
		"method", method,
	)
}

// LogServiceResponse logs HTTP service responses
func LogServiceResponse(logger *Logger, service string, statusCode int, duration time.Duration) {
	if statusCode >= 400 {
		logger.Warn(
			"Service response",
			"service", service,
			"status", statusCode,
			"duration", duration,
		)
	} else {
		logger.Debug(
			"Service response",
			"service", service,
			"status", statusCode,
			"duration", duration,
		)
	}
}

// ParseLogLevel converts a string to LogLevel
func ParseLogLevel(levelStr string) LogLevel {
	switch strings.ToLower(levelStr) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}
