package logger

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

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	previous := log
	log = zap.New(core)
	t.Cleanup(func() { log = previous })
	return logs
}

func TestDefaultIsUsableBeforeInitialize(t *testing.T) {
	require.NotNil(t, Default())
	assert.NotPanics(t, func() {
		Info("not initialized yet")
		ErrorCtx(context.Background(), errors.New("boom"))
	})
}

func TestInitialize_WithoutSentry(t *testing.T) {
	previous := log
	t.Cleanup(func() { log = previous })

	require.NoError(t, Initialize(Config{Debug: true}))
	assert.True(t, Default().Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, Initialize(Config{Debug: false}))
	assert.False(t, Default().Core().Enabled(zapcore.DebugLevel))
}

func TestFromContext_AddsSessionFields(t *testing.T) {
	logs := observe(t)

	ctx := WithSession(context.Background(), SessionInfo{SessionID: "s-1", Identity: "123"})
	InfoCtx(ctx, "mint started", zap.String("step", "preflight"))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "s-1", fields["session_id"])
	assert.Equal(t, "123", fields["identity"])
	assert.Equal(t, "preflight", fields["step"])
}

func TestFromContext_AddsRequestID(t *testing.T) {
	logs := observe(t)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithSession(ctx, SessionInfo{SessionID: "s-1"})
	WarnCtx(ctx, "slow receipt")
	InfoCtx(context.Background(), "no request")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	assert.Equal(t, "s-1", entries[0].ContextMap()["session_id"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
	assert.Equal(t, "req-1", RequestID(ctx))
}

func TestErrorCtx_NilError(t *testing.T) {
	logs := observe(t)

	ErrorCtx(context.Background(), nil)
	Error(errors.New("chain unavailable"))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "error occurred", entries[0].Message)
	assert.Equal(t, "chain unavailable", entries[1].Message)
}
