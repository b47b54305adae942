package xcontext

import (
	"context"
	"time"
)

// DetachWithTimeout keeps the values of ctx but not its cancellation or
// deadline, and bounds the result by timeout. A non-positive timeout leaves
// the detached context unbounded.
func DetachWithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)

	if timeout <= 0 {
		return context.WithCancel(detached)
	}

	return context.WithTimeout(detached, timeout)
}
