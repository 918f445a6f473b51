package logger

import (
	"context"

	"go.uber.org/zap"
)

// CtxZapLogger is a context-aware zap wrapper. The module is bound at
// creation time; call sites only pass a ctx and the trace id (if present
// in the context) is attached automatically.
type CtxZapLogger struct {
	base   *zap.Logger
	module string
	config ManagerConfig
}

// DebugCtx logs at Debug level, enriching fields from ctx.
func (l *CtxZapLogger) DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Debug(msg, l.enrichFields(ctx, fields)...)
}

// InfoCtx logs at Info level, enriching fields from ctx.
func (l *CtxZapLogger) InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Info(msg, l.enrichFields(ctx, fields)...)
}

// WarnCtx logs at Warn level, enriching fields from ctx.
func (l *CtxZapLogger) WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Warn(msg, l.enrichFields(ctx, fields)...)
}

// ErrorCtx logs at Error level, enriching fields from ctx.
func (l *CtxZapLogger) ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Error(msg, l.enrichFields(ctx, fields)...)
}

// Debug logs at Debug level without a context.
func (l *CtxZapLogger) Debug(msg string, fields ...zap.Field) {
	l.DebugCtx(context.Background(), msg, fields...)
}

// Info logs at Info level without a context.
func (l *CtxZapLogger) Info(msg string, fields ...zap.Field) {
	l.InfoCtx(context.Background(), msg, fields...)
}

// Warn logs at Warn level without a context.
func (l *CtxZapLogger) Warn(msg string, fields ...zap.Field) {
	l.WarnCtx(context.Background(), msg, fields...)
}

// Error logs at Error level without a context.
func (l *CtxZapLogger) Error(msg string, fields ...zap.Field) {
	l.ErrorCtx(context.Background(), msg, fields...)
}

// Zap exposes the underlying zap logger (gin/gorm adapters need it).
func (l *CtxZapLogger) Zap() *zap.Logger {
	return l.base
}

func (l *CtxZapLogger) enrichFields(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil || l.config.TraceIDKey == "" {
		return fields
	}
	if traceID, ok := ctx.Value(l.config.TraceIDKey).(string); ok && traceID != "" {
		return append(fields, zap.String(l.config.TraceIDFieldName, traceID))
	}
	return fields
}
