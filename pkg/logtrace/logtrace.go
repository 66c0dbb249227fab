// Package logtrace provides context-aware structured logging on top of zap.
package logtrace

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapgrpc"
	"google.golang.org/grpc/grpclog"
)

type contextKey string

// CorrelationIDKey is the context key holding the request correlation id.
const CorrelationIDKey contextKey = "correlation_id"

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// Setup configures the global logger. format is "json" or "console";
// an unknown level falls back to info.
func Setup(serviceName, level, format string) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	l, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		panic(err)
	}
	SetLogger(l.With(zap.String("service", serviceName)))
}

// SetLogger replaces the global logger.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetGRPCLogger routes grpc-go internal logs through the global logger at warn level and above.
func SetGRPCLogger() {
	grpclog.SetLoggerV2(zapgrpc.NewLogger(current().WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))))
}

// Sync flushes buffered log entries.
func Sync() {
	_ = current().Sync()
}

// CtxWithCorrelationID returns a context carrying the correlation id.
func CtxWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

// CorrelationID returns the correlation id stored in ctx or "unknown".
func CorrelationID(ctx context.Context) string {
	return extractCorrelationID(ctx)
}

func extractCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok && id != "" {
		return id
	}
	return "unknown"
}

// Debug logs a debug message.
func Debug(ctx context.Context, message string, fields Fields) {
	logWithLevel(zapcore.DebugLevel, ctx, message, fields)
}

// Info logs an informational message.
func Info(ctx context.Context, message string, fields Fields) {
	logWithLevel(zapcore.InfoLevel, ctx, message, fields)
}

// Warn logs a warning message.
func Warn(ctx context.Context, message string, fields Fields) {
	logWithLevel(zapcore.WarnLevel, ctx, message, fields)
}

// Error logs an error message.
func Error(ctx context.Context, message string, fields Fields) {
	logWithLevel(zapcore.ErrorLevel, ctx, message, fields)
}

// Fatal logs a message and exits the process.
func Fatal(ctx context.Context, message string, fields Fields) {
	logWithLevel(zapcore.FatalLevel, ctx, message, fields)
}

func logWithLevel(level zapcore.Level, ctx context.Context, message string, fields Fields) {
	l := current()
	if !l.Core().Enabled(level) {
		return
	}

	zapFields := make([]zap.Field, 0, len(fields)+1)
	zapFields = append(zapFields, zap.String(FieldCorrelationID, extractCorrelationID(ctx)))

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == FieldCorrelationID {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := fields[k].(type) {
		case error:
			zapFields = append(zapFields, zap.String(k, v.Error()))
		default:
			zapFields = append(zapFields, zap.Any(k, v))
		}
	}

	if ce := l.Check(level, message); ce != nil {
		ce.Write(zapFields...)
	}
}
