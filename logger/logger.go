// Package logger is the logging facade of avtransformer: every component
// logs through the logger carried in the context.
package logger

import (
	"context"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/pkg/field"
	"github.com/facebookincubator/go-belt/tool/logger"
)

type Logger = logger.Logger

func SetDefault(defaultLogger func() Logger) {
	logger.Default = defaultLogger
}

// WithField returns a context whose logger attaches the given field to every entry.
func WithField(ctx context.Context, key string, value any) context.Context {
	return belt.WithField(ctx, field.Key(key), value)
}

func DebugFields(ctx context.Context, message string, fields field.AbstractFields) {
	logger.DebugFields(ctx, message, fields)
}

func Debug(ctx context.Context, values ...any) {
	logger.Debug(ctx, values...)
}

func Info(ctx context.Context, values ...any) {
	logger.Info(ctx, values...)
}

func Warn(ctx context.Context, values ...any) {
	logger.Warn(ctx, values...)
}

func Error(ctx context.Context, values ...any) {
	logger.Error(ctx, values...)
}

// Panic logs the values and panics.
func Panic(ctx context.Context, values ...any) {
	logger.Panic(ctx, values...)
}

func Debugf(ctx context.Context, format string, args ...any) {
	logger.Debugf(ctx, format, args...)
}

func Infof(ctx context.Context, format string, args ...any) {
	logger.Infof(ctx, format, args...)
}

func Warnf(ctx context.Context, format string, args ...any) {
	logger.Warnf(ctx, format, args...)
}

func Errorf(ctx context.Context, format string, args ...any) {
	logger.Errorf(ctx, format, args...)
}

// Panicf logs the message and panics.
func Panicf(ctx context.Context, format string, args ...any) {
	logger.Panicf(ctx, format, args...)
}

// Fatalf logs the message and exits the process.
func Fatalf(ctx context.Context, format string, args ...any) {
	logger.Fatalf(ctx, format, args...)
}

func Logf(ctx context.Context, level Level, format string, args ...any) {
	logger.Logf(ctx, level, format, args...)
}
