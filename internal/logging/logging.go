// Package logging builds the process-wide zap logger, selecting a JSON or
// console encoder the same way the teacher selects its log format.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide root logger. Call Init before using it.
var Logger *zap.Logger = zap.NewNop()

// Init (re)builds Logger for the given dev-mode flag, level, and format
// ("json" or anything else for console). It is safe to call twice — the
// worker does this once with bootstrap defaults and again once config has
// been loaded, mirroring the teacher's two-phase InitLogger calls.
func Init(dev bool, level string, format string) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stdout)), zapLevel)

	opts := []zap.Option{zap.AddCaller()}
	if dev {
		opts = append(opts, zap.Development())
	}

	Logger = zap.New(core, opts...)
}
