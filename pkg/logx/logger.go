// Package logx provides structured logging for clutch, backed by
// logrus. Call sites across the codebase pass either flat key-value
// variadic pairs or a single map[string]interface{} — both are
// accepted.
package logx

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus.Logger with a fixed component name attached to
// every entry.
type Logger struct {
	entry *logrus.Entry
}

// NewLogger creates a Logger at the given level for the named component.
// Unparseable levels fall back to info.
func NewLogger(level string, component string) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)

	return &Logger{entry: base.WithField("component", component)}
}

// WithField returns a derived Logger with an additional static field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func toFields(args []interface{}) logrus.Fields {
	if len(args) == 1 {
		if m, ok := args[0].(map[string]interface{}); ok {
			return logrus.Fields(m)
		}
	}
	fields := make(logrus.Fields, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		fields[key] = args[i+1]
	}
	return fields
}

// Debug logs at debug level. args may be key-value pairs or a single
// map[string]interface{}.
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.entry.WithFields(toFields(args)).Debug(msg)
}

// Info logs at info level. args may be key-value pairs or a single
// map[string]interface{}.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.entry.WithFields(toFields(args)).Info(msg)
}

// Warn logs at warn level. args may be key-value pairs or a single
// map[string]interface{}.
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.entry.WithFields(toFields(args)).Warn(msg)
}

// Error logs at error level. args may be key-value pairs or a single
// map[string]interface{}.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.entry.WithFields(toFields(args)).Error(msg)
}
