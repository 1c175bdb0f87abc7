package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level represents logging level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns string representation of Level
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

// ParseLevel parses a level name as used in configuration files
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger is the interface every component logs through
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	SetLevel(level Level)
}

// DefaultLogger writes printf-style lines through the standard log package
type DefaultLogger struct {
	level  Level
	logger *log.Logger
}

// NewDefaultLogger creates a logger writing to stdout
func NewDefaultLogger(level Level) *DefaultLogger {
	return NewWriterLogger(os.Stdout, level)
}

// NewWriterLogger creates a logger writing to w
func NewWriterLogger(w io.Writer, level Level) *DefaultLogger {
	return &DefaultLogger{
		level:  level,
		logger: log.New(w, "", log.LstdFlags|log.Lmicroseconds),
	}
}

func (l *DefaultLogger) logf(level Level, format string, args []interface{}) {
	if level < l.level {
		return
	}
	l.logger.Printf("["+level.String()+"] "+format, args...)
}

// Debug logs debug message
func (l *DefaultLogger) Debug(format string, args ...interface{}) {
	l.logf(LevelDebug, format, args)
}

// Info logs info message
func (l *DefaultLogger) Info(format string, args ...interface{}) {
	l.logf(LevelInfo, format, args)
}

// Warn logs warning message
func (l *DefaultLogger) Warn(format string, args ...interface{}) {
	l.logf(LevelWarn, format, args)
}

// Error logs error message
func (l *DefaultLogger) Error(format string, args ...interface{}) {
	l.logf(LevelError, format, args)
}

// SetLevel sets the logging level
func (l *DefaultLogger) SetLevel(level Level) {
	l.level = level
}

// NoOpLogger discards everything
type NoOpLogger struct{}

// NewNoOpLogger creates a logger that doesn't log
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Debug(format string, args ...interface{}) {}
func (l *NoOpLogger) Info(format string, args ...interface{})  {}
func (l *NoOpLogger) Warn(format string, args ...interface{})  {}
func (l *NoOpLogger) Error(format string, args ...interface{}) {}
func (l *NoOpLogger) SetLevel(level Level)                     {}

var defaultLogger Logger = NewDefaultLogger(LevelInfo)

// SetDefault sets the process-wide logger used when components get nil
func SetDefault(logger Logger) {
	defaultLogger = logger
}

// GetDefault returns the process-wide logger
func GetDefault() Logger {
	return defaultLogger
}

// OrNoOp returns log, or a NoOpLogger when log is nil
func OrNoOp(log Logger) Logger {
	if log == nil {
		return NewNoOpLogger()
	}
	return log
}
