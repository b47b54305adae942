package log

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/leadhub/leadhub/internal/contexts"
)

func newObservedLogger(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewWithZap(zap.New(core), zap.NewAtomicLevelAt(level)), logs
}

func TestLogger_AppliesHooks(t *testing.T) {
	logger, logs := newObservedLogger(zapcore.InfoLevel)
	logger.AddHook(HookFunc(func(ctx context.Context, msg string, fields ...Field) []Field {
		return append(fields, String("component", "export"))
	}))

	ctx := contexts.WithTraceID(context.Background(), "at-1")
	logger.Error(ctx, "export failed", String("job_id", "job-1"), Cause(errors.New("smtp down")))

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "export failed", entries[0].Message)

	fields := entries[0].ContextMap()
	require.Equal(t, "job-1", fields["job_id"])
	require.Equal(t, "smtp down", fields["error"])
	require.Equal(t, "at-1", fields["trace_id"])
	require.Equal(t, "export", fields["component"])
}

func TestLogger_DebugDisabled(t *testing.T) {
	logger, logs := newObservedLogger(zapcore.InfoLevel)

	require.False(t, logger.DebugEnabled())
	logger.Debug(context.Background(), "hidden")
	require.Equal(t, 0, logs.Len())
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	require.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	require.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	require.Equal(t, zapcore.InfoLevel, parseLevel(""))
}

func TestGlobalLogger(t *testing.T) {
	previous := GetGlobalLogger()
	defer SetGlobalLogger(previous)

	logger, logs := newObservedLogger(zapcore.DebugLevel)
	SetGlobalLogger(logger)

	Debug(context.Background(), "debug message", Int("count", 2))
	Warn(context.Background(), "warn message")

	require.True(t, DebugEnabled(context.Background()))
	require.Equal(t, 2, logs.Len())
}
