package keyed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// waitPending blocks until key has n queued operations.
func waitPending(t *testing.T, s *Serializer[string], key string, n int) {
	t.Helper()

	require.Eventually(t, func() bool {
		return s.Pending(key) == n
	}, time.Second, time.Millisecond)
}

func TestSerializer_SameKeyRunsInSubmissionOrder(t *testing.T) {
	s := New[string]()
	release := make(chan struct{})

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)

	wg.Add(1)

	go func() {
		defer wg.Done()

		_ = s.Do(context.Background(), "u1", func(ctx context.Context) error {
			<-release

			mu.Lock()
			order = append(order, 0)
			mu.Unlock()

			return nil
		})
	}()

	waitPending(t, s, "u1", 1)

	for i := 1; i <= 5; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_ = s.Do(context.Background(), "u1", func(ctx context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()

				return nil
			})
		}()

		waitPending(t, s, "u1", i+1)
	}

	close(release)
	wg.Wait()

	require.Equal(t, []int{0, 1, 2, 3, 4, 5}, order)
	require.Equal(t, 0, s.Len())
}

func TestSerializer_SameKeyNeverOverlaps(t *testing.T) {
	s := New[string]()

	var (
		running atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)

	for range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_ = s.Do(context.Background(), "u1", func(ctx context.Context) error {
				current := running.Add(1)
				for {
					seen := maxSeen.Load()
					if current <= seen || maxSeen.CompareAndSwap(seen, current) {
						break
					}
				}

				time.Sleep(100 * time.Microsecond)
				running.Add(-1)

				return nil
			})
		}()
	}

	wg.Wait()

	require.Equal(t, int32(1), maxSeen.Load())
}

func TestSerializer_DifferentKeysRunConcurrently(t *testing.T) {
	s := New[string]()
	started := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- s.Do(context.Background(), "u1", func(ctx context.Context) error {
			select {
			case <-started:
				return nil
			case <-time.After(time.Second):
				return errors.New("u2 never ran while u1 was busy")
			}
		})
	}()

	waitPending(t, s, "u1", 1)

	err := s.Do(context.Background(), "u2", func(ctx context.Context) error {
		close(started)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, <-done)
}

func TestSerializer_CancelledWaiterKeepsOrder(t *testing.T) {
	s := New[string]()
	release := make(chan struct{})

	var (
		mu    sync.Mutex
		order []string
	)

	ran := func(name string) {
		mu.Lock()
		defer mu.Unlock()

		order = append(order, name)
	}

	snapshot := func() []string {
		mu.Lock()
		defer mu.Unlock()

		return append([]string(nil), order...)
	}

	go func() {
		_ = s.Do(context.Background(), "u1", func(ctx context.Context) error {
			<-release
			ran("first")

			return nil
		})
	}()

	waitPending(t, s, "u1", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancelled := make(chan error, 1)

	go func() {
		cancelled <- s.Do(ctx, "u1", func(ctx context.Context) error {
			ran("cancelled")
			return nil
		})
	}()

	waitPending(t, s, "u1", 2)
	cancel()
	require.ErrorIs(t, <-cancelled, context.Canceled)

	third := make(chan struct{})

	go func() {
		_ = s.Do(context.Background(), "u1", func(ctx context.Context) error {
			ran("third")
			close(third)

			return nil
		})
	}()

	waitPending(t, s, "u1", 3)

	time.Sleep(20 * time.Millisecond)
	require.Empty(t, snapshot(), "nothing may run while the first operation is blocked")

	close(release)
	<-third

	require.Equal(t, []string{"first", "third"}, snapshot())
	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, time.Millisecond)
}

func TestSerializer_PanicReleasesKey(t *testing.T) {
	s := New[string]()

	func() {
		defer func() {
			require.NotNil(t, recover())
		}()

		_ = s.Do(context.Background(), "u1", func(ctx context.Context) error {
			panic("boom")
		})
	}()

	err := s.Do(context.Background(), "u1", func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 0, s.Len())
}

func TestRun_ReturnsValue(t *testing.T) {
	s := New[string]()

	n, err := Run(context.Background(), s, "u1", func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, n)

	_, err = Run(context.Background(), s, "u1", func(ctx context.Context) (int, error) {
		return 0, errors.New("storage down")
	})
	require.EqualError(t, err, "storage down")
}
