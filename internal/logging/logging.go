// Package logging holds the process-global structured logger.
//
// Library packages log through Logger(), which returns a no-op logger until
// the CLI (or an embedding application) calls Init. This keeps the loader
// silent by default when used as a library.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global *zap.SugaredLogger

// Init configures the global logger at the given level
// ("debug", "info", "warn", "error").
func Init(level string) error {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	global = logger.Sugar()
	return nil
}

// Logger returns the global logger, never nil.
func Logger() *zap.SugaredLogger {
	if global == nil {
		return zap.NewNop().Sugar()
	}
	return global
}

// Sync flushes buffered log entries. Safe to call when Init was never run.
func Sync() {
	if global != nil {
		_ = global.Sync()
	}
}
