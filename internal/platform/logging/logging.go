// Package logging builds the runtime's zap logger. Output always goes to
// stderr because stdout carries the readiness line and local responses.
package logging

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"algoadk/go-runtime/internal/config"
	"algoadk/go-runtime/internal/platform/privacylog"
)

func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	return NewWithSink(cfg, zapcore.Lock(os.Stderr))
}

func NewWithSink(cfg config.LoggingConfig, sink zapcore.WriteSyncer) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if raw := strings.TrimSpace(cfg.Level); raw != "" {
		parsed, err := zapcore.ParseLevel(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "parse log level %q", raw)
		}
		level = parsed
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console", "text":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, errors.Newf("unsupported log format %q", cfg.Format)
	}

	core := privacylog.WrapCore(zapcore.NewCore(enc, sink, level))
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.DPanicLevel)), nil
}

// MustNew falls back to the default settings when cfg is invalid.
func MustNew(cfg config.LoggingConfig) *zap.Logger {
	logger, err := New(cfg)
	if err == nil {
		return logger
	}
	logger, _ = New(config.Default().Logging)
	logger.Warn("invalid logging config, using defaults",
		zap.String("component", "logging"),
		zap.Error(err),
	)
	return logger
}
