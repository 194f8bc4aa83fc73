package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	appctx "ispledger/internal/core/context"
)

func TestFromContext_UsesStoredLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := Wrap(zap.New(core)).WithComponent("api")

	trace := appctx.NewTraceContext()
	ctx := WithLogger(context.Background(), log)
	ctx = appctx.WithTrace(ctx, trace)
	ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: "storekeeper-1"})

	Info(ctx, "debts returned", "lines", 2)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "debts returned", entries[0].Message)
	assert.Equal(t, "api", fields["component"])
	assert.Equal(t, trace.TraceID, fields["trace_id"])
	assert.Equal(t, trace.RequestID, fields["request_id"])
	assert.Equal(t, "storekeeper-1", fields["user_id"])
	assert.EqualValues(t, 2, fields["lines"])
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	log, err := New(Config{Level: "loud", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	assert.True(t, log.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Desugar().Core().Enabled(zapcore.DebugLevel))
}

func TestFromContext_WithoutLogger(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
}
