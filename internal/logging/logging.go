// Package logging builds the structured logger handed to every component.
package logging

import (
	"fmt"
	"strings"

	"github.com/jensneuse/abstractlogger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps a flag value to a level. The empty string means info.
func ParseLevel(s string) (abstractlogger.Level, zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return abstractlogger.DebugLevel, zapcore.DebugLevel, nil
	case "", "info":
		return abstractlogger.InfoLevel, zapcore.InfoLevel, nil
	case "warn", "warning":
		return abstractlogger.WarnLevel, zapcore.WarnLevel, nil
	case "error":
		return abstractlogger.ErrorLevel, zapcore.ErrorLevel, nil
	}
	return 0, 0, fmt.Errorf("unknown log level %q", s)
}

// New returns a zap backed logger and a func that flushes it.
func New(level string, development bool) (abstractlogger.Logger, func(), error) {
	ll, zl, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zl)
	z, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}
	return Wrap(z, ll), func() { _ = z.Sync() }, nil
}

// Wrap adapts an existing zap logger.
func Wrap(z *zap.Logger, level abstractlogger.Level) abstractlogger.Logger {
	return abstractlogger.NewZapLogger(z, level)
}
