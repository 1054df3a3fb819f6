// Package logging wires logr loggers backed by zap for the lifecycle runtime.
package logging

import (
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	uberzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels passed to logr's V().
const (
	DEFAULT = 2
	VERBOSE = 3
	DEBUG   = 4
	TRACE   = 5
)

// atomicLevel is shared by every logger built here so SetVerbosity can
// adjust loggers that were already handed out.
var atomicLevel = uberzap.NewAtomicLevelAt(zapcore.Level(-DEFAULT))

// NewLogger builds a zap-backed logr.Logger at the given verbosity.
// Development mode switches to the console encoder with stack traces on warn.
func NewLogger(verbosity int, development bool) (logr.Logger, error) {
	SetVerbosity(verbosity)

	cfg := uberzap.NewProductionConfig()
	if development {
		cfg = uberzap.NewDevelopmentConfig()
	}
	cfg.Level = atomicLevel
	cfg.Sampling = nil

	zl, err := cfg.Build(uberzap.AddCaller())
	if err != nil {
		return logr.Discard(), err
	}
	return zapr.NewLogger(zl), nil
}

// SetVerbosity changes the level of every logger created by NewLogger.
func SetVerbosity(verbosity int) {
	if verbosity < 0 {
		verbosity = 0
	}
	atomicLevel.SetLevel(zapcore.Level(-verbosity))
}

// NewTestLogger creates a development logger that emits everything up to TRACE.
func NewTestLogger() logr.Logger {
	zl := uberzap.New(
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(uberzap.NewDevelopmentEncoderConfig()),
			zapcore.Lock(os.Stderr),
			uberzap.NewAtomicLevelAt(zapcore.Level(-TRACE)),
		),
		uberzap.AddCaller(),
	)
	return zapr.NewLogger(zl)
}

// Fatal calls logger.Error followed by os.Exit(1).
//
// Only meant for process bootstrap.
func Fatal(logger logr.Logger, err error, msg string, keysAndValues ...interface{}) {
	logger.Error(err, msg, keysAndValues...)
	os.Exit(1)
}
