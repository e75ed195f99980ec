package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	lp, err := NewLoggerProvider(ctx, LogsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.Shutdown(ctx))

	core := NewZapOTELCore("stockctl", lp, zapcore.InfoLevel)
	assert.False(t, core.Enabled(zapcore.ErrorLevel))
	assert.False(t, NewZapOTELCore("stockctl", nil, zapcore.InfoLevel).Enabled(zapcore.ErrorLevel))
}

func TestNewZapOTELCore_Enabled(t *testing.T) {
	ctx := context.Background()

	lp, err := NewLoggerProvider(ctx, LogsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:4317",
		ServiceName:       "stockctl",
		Insecure:          true,
	}, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = lp.Shutdown(ctx) }()

	core := NewZapOTELCore("stockctl", lp, zapcore.WarnLevel)
	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.WarnLevel))
}

func TestLevelFilterCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}

	logger := zap.New(core).With(zap.String("operation", "ship_order"))
	logger.Info("dropped")
	logger.Warn("kept")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "kept", entry.Message)
	assert.Equal(t, "ship_order", entry.ContextMap()["operation"])
}

func TestNewBridgedLogger(t *testing.T) {
	baseCore, baseLogs := observer.New(zapcore.InfoLevel)
	otelCore, otelLogs := observer.New(zapcore.WarnLevel)

	logger := NewBridgedLogger(zap.New(baseCore), otelCore)
	logger.Info("stock moved")
	logger.Warn("retrying transaction")

	assert.Equal(t, 2, baseLogs.Len())
	assert.Equal(t, 1, otelLogs.Len())
}
