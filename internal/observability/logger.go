package observability

import (
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps LOG_LEVEL to a zap level; empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("log level %q: %w", s, err)
	}
	return lvl, nil
}

func consoleCore(level zapcore.LevelEnabler) zapcore.Core {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.Lock(os.Stdout),
		level,
	)
}

func newLogger(core zapcore.Core, service string) *zap.Logger {
	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service.name", service)),
	)
}

// NewLogger writes JSON to stdout.
func NewLogger(level zapcore.Level, service string) *zap.Logger {
	return newLogger(consoleCore(level), service)
}

// NewOTelLogger tees stdout with the global OpenTelemetry logger provider.
// Call it after SetupLoggingSDK.
func NewOTelLogger(level zapcore.Level, service string) *zap.Logger {
	otelCore := otelzap.NewCore(service,
		otelzap.WithLoggerProvider(global.GetLoggerProvider()),
	)
	var core zapcore.Core = otelCore
	if leveled, err := zapcore.NewIncreaseLevelCore(otelCore, level); err == nil {
		core = leveled
	}
	return newLogger(zapcore.NewTee(core, consoleCore(level)), service)
}
