// Package logging builds the zap logger every Nightwatch component shares.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger for the given level ("trace" is mapped to zap's debug,
// there being no lower level) and format ("json" or "console").
func New(level string, format string) (*zap.Logger, error) {
	zapLevel := parseLevel(level)

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapLevel)
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	base = base.With(zap.String("service_name", "nightwatch"))
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		base = base.With(zap.String("hostname", hostname))
	}

	return base, nil
}

// Default builds an info-level, JSON-format logger.
func Default() (*zap.Logger, error) {
	return New("info", "json")
}

// Development builds a console logger at debug level, for `run --mock-sensors`
// and local iteration.
func Development() (*zap.Logger, error) {
	return zap.NewDevelopment()
}

// ForComponent scopes a logger to one pipeline component (a detector name,
// "fusion", "alert_engine", ...), the way each detector/engine instance
// binds its own fields once at construction.
func ForComponent(base *zap.Logger, component string) *zap.Logger {
	return base.With(zap.String("component", component))
}

// ForSession further scopes a component logger to one detector session.
func ForSession(base *zap.Logger, sessionID string) *zap.Logger {
	return base.With(zap.String("session_id", sessionID))
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
