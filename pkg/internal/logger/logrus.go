package logger

import (
	"github.com/sirupsen/logrus"
)

// LogrusLogger adapts a logrus logger to Logger
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps base, tagging every line with the component name
func NewLogrusLogger(base *logrus.Logger, component string) *LogrusLogger {
	return &LogrusLogger{entry: base.WithField("component", component)}
}

// NewLogrusJSON builds a JSON logrus logger at the given level
func NewLogrusJSON(level Level, component string) *LogrusLogger {
	base := logrus.New()
	base.SetFormatter(&logrus.JSONFormatter{})
	l := NewLogrusLogger(base, component)
	l.SetLevel(level)
	return l
}

func (l *LogrusLogger) Debug(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *LogrusLogger) Info(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *LogrusLogger) Warn(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *LogrusLogger) Error(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// SetLevel sets the level of the underlying logrus logger
func (l *LogrusLogger) SetLevel(level Level) {
	switch level {
	case LevelDebug:
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		l.entry.Logger.SetLevel(logrus.WarnLevel)
	case LevelError:
		l.entry.Logger.SetLevel(logrus.ErrorLevel)
	default:
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	}
}
