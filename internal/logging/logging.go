// Package logging constructs the daemon's structured logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cua-dev/cuad/internal/state"
)

// New builds a zap.Logger that writes JSON lines to the daemon's log file
// under state.LogsDir() and to stderr. It falls back to zap's default
// production logger (stderr only) if the log path cannot be resolved or
// its directory cannot be created; an error opening the file itself is
// returned.
func New(debug bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	logPath, err := state.DefaultLogFile()
	if err != nil {
		return zap.NewProduction()
	}
	if err := state.EnsureDir(logPath); err != nil {
		return zap.NewProduction()
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "json",
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{logPath, "stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return cfg.Build()
}
