// Package logging builds the structured zap logger every component
// uses in place of plain log.Printf calls, so each decision reason
// code and lifecycle transition is a structured field rather than a
// formatted string.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level mirrors the CLI's --loglevel flag values.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// New builds a production-shaped zap logger at the given level,
// writing JSON to stderr the way a long-running worker process's
// logs are expected to be collected.
func New(level Level) (*zap.Logger, error) {
	var zl zapcore.Level
	switch level {
	case LevelDebug:
		zl = zapcore.DebugLevel
	case LevelError:
		zl = zapcore.ErrorLevel
	case LevelInfo, "":
		zl = zapcore.InfoLevel
	default:
		return nil, fmt.Errorf("logging: unknown level %q", level)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: building zap logger: %w", err)
	}
	return logger, nil
}
