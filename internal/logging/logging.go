// Package logging sets up the process-wide zap logger. Unlike the original
// wavesexchange_log macros, the logger instance is constructed once in the
// entry point and threaded through explicitly, never reached for through a
// global.
package logging

import (
	"gopkg.in/natefinch/lumberjack.v2"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a leveled, structured logger. When filePath is empty, logs go
// to stderr; otherwise they are rotated through lumberjack the same way
// erigon, ethereum-mive-mive and BeadsLog all configure their file sinks.
func New(level string, filePath string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var core zapcore.Core
	if filePath == "" {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		cfg.EncoderConfig = encoderCfg
		return cfg.Build()
	}

	rotator := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}

	core = zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(rotator),
		lvl,
	)

	return zap.New(core, zap.AddCaller()), nil
}
