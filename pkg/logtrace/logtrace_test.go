package logtrace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(level)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })
	return logs
}

func TestInfoCarriesCorrelationID(t *testing.T) {
	logs := observe(t, zapcore.InfoLevel)

	ctx := CtxWithCorrelationID(context.Background(), "req-1")
	Info(ctx, "entry stored", Fields{FieldModule: "dispatch", FieldError: errors.New("none")})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "entry stored", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "req-1", fields[FieldCorrelationID])
	assert.Equal(t, "dispatch", fields[FieldModule])
	assert.Equal(t, "none", fields[FieldError])
}

func TestLevelFiltering(t *testing.T) {
	logs := observe(t, zapcore.WarnLevel)

	Debug(context.Background(), "hidden", nil)
	Info(context.Background(), "hidden", nil)
	Warn(context.Background(), "shown", nil)
	Error(context.Background(), "shown", nil)

	assert.Equal(t, 2, logs.FilterMessage("shown").Len())
	assert.Equal(t, 0, logs.FilterMessage("hidden").Len())
}

func TestCorrelationIDDefaults(t *testing.T) {
	assert.Equal(t, "unknown", CorrelationID(context.Background()))
	assert.Equal(t, "unknown", CorrelationID(CtxWithCorrelationID(context.Background(), "")))
	assert.Equal(t, "abc", CorrelationID(CtxWithCorrelationID(context.Background(), "abc")))
}

func TestWithFields(t *testing.T) {
	base := Fields{FieldModule: "p2p"}
	merged := WithFields(base, Fields{FieldPeer: "n1"})

	assert.Equal(t, Fields{FieldModule: "p2p", FieldPeer: "n1"}, merged)
	assert.Len(t, base, 1)
}
