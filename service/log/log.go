package log

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type logKey struct{}

var defaultLogger *zap.Logger

func init() {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, ok := os.LookupEnv("LOG_LEVEL"); ok {
		var l zapcore.Level
		if err := l.Set(lvl); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(l)
		}
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	defaultLogger = logger
}

// Logger returns the logger attached to ctx, or the default logger
func Logger(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(logKey{}).(*zap.Logger); ok {
		return l
	}
	return defaultLogger
}

// With attaches the key/value pair to the logger carried by the returned context
func With(ctx context.Context, key string, value interface{}) context.Context {
	return context.WithValue(ctx, logKey{}, Logger(ctx).With(zap.Any(key, value)))
}

// WithFields attaches the fields to the logger carried by the returned context
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return context.WithValue(ctx, logKey{}, Logger(ctx).With(fields...))
}

// Fatal logs the message with the default logger, then exits
func Fatal(msg string, fields ...zap.Field) {
	defaultLogger.Fatal(msg, fields...)
}
