// Package logging provides the structured logger used throughout the
// supervisor. Every component asks for its own named logger via
// GetLogger and logs key/value pairs rather than formatted strings, so
// that log lines remain machine-parseable regardless of the module
// that emitted them.
package logging

import (
	"os"
	"sync"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// Level is a logging severity.
type Level int

// Severities, from most to least verbose.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu        sync.Mutex
	baseLevel = LevelInfo
	base      = kitlog.NewSyncLogger(kitlog.NewLogfmtLogger(os.Stderr))
)

// SetLevel adjusts the minimum level logged by every Logger obtained
// from GetLogger, past and future.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	baseLevel = l
}

// Logger is a named, leveled, structured logger.
type Logger struct {
	module string
	logger kitlog.Logger
}

// GetLogger returns the logger for the named module. Repeated calls
// with the same name return independently configured but
// equivalently-behaved loggers; there is no shared mutable state
// beyond the package-level minimum level.
func GetLogger(module string) *Logger {
	return &Logger{
		module: module,
		logger: kitlog.With(base, "module", module, "ts", kitlog.DefaultTimestampUTC),
	}
}

func (l *Logger) log(lvl Level, msg string, keyvals ...interface{}) {
	mu.Lock()
	min := baseLevel
	mu.Unlock()

	if lvl < min {
		return
	}

	kv := append([]interface{}{"msg", msg}, keyvals...)
	var filtered kitlog.Logger
	switch lvl {
	case LevelTrace, LevelDebug:
		filtered = level.Debug(l.logger)
	case LevelInfo:
		filtered = level.Info(l.logger)
	case LevelWarn:
		filtered = level.Warn(l.logger)
	default:
		filtered = level.Error(l.logger)
	}
	_ = filtered.Log(kv...)
}

// Trace logs at the most verbose level.
func (l *Logger) Trace(msg string, keyvals ...interface{}) { l.log(LevelTrace, msg, keyvals...) }

// Debug logs diagnostic detail not needed in normal operation.
func (l *Logger) Debug(msg string, keyvals ...interface{}) { l.log(LevelDebug, msg, keyvals...) }

// Info logs notable, expected events.
func (l *Logger) Info(msg string, keyvals ...interface{}) { l.log(LevelInfo, msg, keyvals...) }

// Warn logs a recovered problem.
func (l *Logger) Warn(msg string, keyvals ...interface{}) { l.log(LevelWarn, msg, keyvals...) }

// Error logs an unrecovered problem local to one operation.
func (l *Logger) Error(msg string, keyvals ...interface{}) { l.log(LevelError, msg, keyvals...) }

// With returns a derived Logger that always includes the given
// key/value pairs, e.g. a chain or object identity.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{
		module: l.module,
		logger: kitlog.With(l.logger, keyvals...),
	}
}
