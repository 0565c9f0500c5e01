package log

import (
	"context"

	"go.uber.org/zap"
)

type logCtxKey int

// IntoContext stores logger in the context.
func IntoContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, logCtxKey(0), logger)
}

// FromContext returns the logger stored in the context, or the global one.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(logCtxKey(0)).(*zap.Logger); ok {
		return logger
	}
	zap.L().Warn("No logger in context, passing default")
	return zap.L()
}

// With returns a context whose logger carries the additional fields.
func With(ctx context.Context, fields ...zap.Field) context.Context {
	return IntoContext(ctx, FromContext(ctx).With(fields...))
}

// Named returns a context whose logger is a named child of the current one.
func Named(ctx context.Context, name string) context.Context {
	return IntoContext(ctx, FromContext(ctx).Named(name))
}
