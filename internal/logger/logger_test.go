package logger

import (
	"context"
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

func TestWithFields(t *testing.T) {
	logs := observe(t)

	ctx := WithFields(context.Background(), zap.String("kind", "contribution_created"))
	ctx = WithFields(ctx, zap.String("logKey", "0xabc:1"))
	InfoCtx(ctx, "Applied event", zap.Uint64("block", 7))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "contribution_created", fields["kind"])
	assert.Equal(t, "0xabc:1", fields["logKey"])
	assert.Equal(t, uint64(7), fields["block"])
}

func TestWithFields_DoesNotLeakToParent(t *testing.T) {
	logs := observe(t)

	parent := WithFields(context.Background(), zap.String("kind", "sbt_minted"))
	_ = WithFields(parent, zap.String("logKey", "0xdef:2"))
	WarnCtx(parent, "Parent entry")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "sbt_minted", fields["kind"])
	assert.NotContains(t, fields, "logKey")
}

func TestWithFields_NoFields(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithFields(ctx))
}

func TestInitialize_WithoutSentry(t *testing.T) {
	previous := log
	t.Cleanup(func() { log = previous })

	require.NoError(t, Initialize(Config{Debug: true, Service: "indexer", Environment: "test"}))
	assert.True(t, Default().Core().Enabled(zapcore.DebugLevel))
	assert.Nil(t, sentryClient)
}
