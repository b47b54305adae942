package xcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

func TestDetachWithTimeout(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "v"))

	ctx, cancel := DetachWithTimeout(parent, time.Hour)
	defer cancel()

	cancelParent()

	require.NoError(t, ctx.Err())
	require.Equal(t, "v", ctx.Value(ctxKey{}))

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(time.Hour), deadline, time.Minute)
}

func TestDetachWithTimeout_Unbounded(t *testing.T) {
	parent, cancelParent := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancelParent()

	ctx, cancel := DetachWithTimeout(parent, 0)

	_, ok := ctx.Deadline()
	require.False(t, ok)

	cancel()
	require.ErrorIs(t, ctx.Err(), context.Canceled)
}
