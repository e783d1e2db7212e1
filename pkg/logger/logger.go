// Package logger provides basic logging functionalities on top of zap.
package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger defines a simple interface for logging.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
}

// ParseLevel maps "debug", "info", "warn", "error", "fatal" to a zap level.
// Unknown strings fall back to info.
func ParseLevel(logLevel string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(logLevel)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// NewZap builds a *zap.Logger for components that take one explicitly.
// Debug level selects the development encoder.
func NewZap(logLevel string) (*zap.Logger, error) {
	lvl := ParseLevel(logLevel)
	cfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return l, nil
}

// NewLogger creates and configures a new Logger instance.
func NewLogger(logLevel string) Logger {
	l, err := NewZap(logLevel)
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return Wrap(l)
}

// Wrap exposes an existing *zap.Logger through the Logger interface,
// skipping the package-level call frame.
func Wrap(l *zap.Logger) Logger {
	return l.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

var (
	mu  sync.RWMutex
	std Logger = NewLogger("info")
)

// SetGlobalLogLevel reconfigures the global std logger's level.
func SetGlobalLogLevel(logLevel string) {
	SetGlobal(NewLogger(logLevel))
}

// SetGlobal replaces the global std logger. Tests use it to capture output.
func SetGlobal(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	std = l
}

func global() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

// Debug logs a debug message using the global std logger.
func Debug(args ...interface{}) { global().Debug(args...) }

// Debugf logs a debug message with formatting.
func Debugf(format string, args ...interface{}) { global().Debugf(format, args...) }

// Info logs an informational message using the global std logger.
func Info(args ...interface{}) { global().Info(args...) }

// Infof logs an informational message with formatting.
func Infof(format string, args ...interface{}) { global().Infof(format, args...) }

// Warn logs a warning.
func Warn(args ...interface{}) { global().Warn(args...) }

// Warnf logs a warning with formatting.
func Warnf(format string, args ...interface{}) { global().Warnf(format, args...) }

// Error logs an error message.
func Error(args ...interface{}) { global().Error(args...) }

// Errorf logs an error message with formatting.
func Errorf(format string, args ...interface{}) { global().Errorf(format, args...) }

// Fatal logs a fatal error message and exits.
func Fatal(args ...interface{}) { global().Fatal(args...) }

// Fatalf logs a fatal error message with formatting and exits.
func Fatalf(format string, args ...interface{}) { global().Fatalf(format, args...) }
