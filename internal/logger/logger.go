// Package logger wraps zap with a small constructor used at bootstrap.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger carries the configured zap logger.
type Logger struct {
	Log *zap.Logger
}

// New returns a Logger with a no-op zap instance; call Init to configure it.
func New() *Logger {
	return &Logger{Log: zap.NewNop()}
}

// Init builds a production zap logger at the given level ("debug", "info",
// "warn", "error"; case-insensitive) and replaces the no-op instance.
func (l *Logger) Init(level string) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	log, err := cfg.Build()
	if err != nil {
		return err
	}

	l.Log = log
	return nil
}
