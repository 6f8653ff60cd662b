package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_LevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapLogger(zap.New(core))
	ctx := context.Background()

	l.Debug(ctx, "dbg", "a", 1)
	l.Info(ctx, "inf")
	l.Warn(ctx, "wrn")
	l.With("phase", "authenticated").Error(ctx, "err", "code", 401)

	entries := logs.All()
	require.Len(t, entries, 4)

	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, int64(1), entries[0].ContextMap()["a"])
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)

	last := entries[3]
	assert.Equal(t, zapcore.ErrorLevel, last.Level)
	assert.Equal(t, "err", last.Message)
	assert.Equal(t, "authenticated", last.ContextMap()["phase"])
	assert.Equal(t, int64(401), last.ContextMap()["code"])
}

func TestZapLogger_ContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewZapLogger(zap.New(core))

	l.Info(ContextWith(context.Background(), "command", "logs"), "opened", "atm_id", 7)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "logs", fields["command"])
	assert.Equal(t, int64(7), fields["atm_id"])
}
