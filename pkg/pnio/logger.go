package pnio

import (
	"fmt"

	"avaneesh/pnio-go/pkg/internal/logger"
)

// Logger is the logging interface accepted by every component
type Logger = logger.Logger

// LogLevel represents logging level
type LogLevel int

const (
	// LevelDebug shows all log messages (most verbose)
	LevelDebug LogLevel = iota
	// LevelInfo shows info, warn, and error messages (default)
	LevelInfo
	// LevelWarn shows warn and error messages
	LevelWarn
	// LevelError shows only error messages
	LevelError
)

// SetLogLevel replaces the process-wide default logger with a standard
// logger at level. Devices created afterwards without WithLogger use it.
func SetLogLevel(level LogLevel) {
	logger.SetDefault(logger.NewDefaultLogger(logger.Level(level)))
}

// NewLogger builds a logger for backend "zap", "logrus" or "std" and
// installs it as the process default. The returned flush func syncs
// buffered output and is safe to call more than once.
func NewLogger(backend, level, component string) (Logger, func() error, error) {
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	var (
		l     Logger
		flush = func() error { return nil }
	)
	switch backend {
	case "zap":
		z, err := logger.NewZapProduction(lvl)
		if err != nil {
			return nil, nil, fmt.Errorf("zap logger: %w", err)
		}
		l, flush = z, z.Sync
	case "logrus":
		l = logger.NewLogrusJSON(lvl, component)
	case "std", "":
		l = logger.NewDefaultLogger(lvl)
	default:
		return nil, nil, fmt.Errorf("unknown log backend %q", backend)
	}
	logger.SetDefault(l)
	return l, flush, nil
}
