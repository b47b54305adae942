// Package keyed provides a per-key FIFO executor.
//
// Operations submitted under the same key run one at a time, in the order they
// were submitted. Operations under different keys do not wait for each other.
package keyed

import (
	"context"
	"sync"
)

// Serializer orders operations per key. The zero value is not usable, use New.
type Serializer[K comparable] struct {
	mu    sync.Mutex
	tails map[K]*tail
}

// tail tracks the most recent submission for a key.
type tail struct {
	// done is closed when the last submitted operation completes.
	done    chan struct{}
	pending int
}

func New[K comparable]() *Serializer[K] {
	return &Serializer[K]{
		tails: make(map[K]*tail),
	}
}

// Do runs fn once every operation submitted earlier under key has finished.
//
// If ctx is done while waiting, Do returns ctx.Err() without running fn. Later
// submissions still wait for the earlier ones, so the order is preserved.
// There is no timeout on fn itself: an fn that never returns blocks its key.
func (s *Serializer[K]) Do(ctx context.Context, key K, fn func(ctx context.Context) error) error {
	prev, mine := s.enqueue(key)

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			go func() {
				<-prev
				s.finish(key, mine)
			}()

			return ctx.Err()
		}
	}

	defer s.finish(key, mine)

	if err := ctx.Err(); err != nil {
		return err
	}

	return fn(ctx)
}

// Run is Do for operations that produce a value.
func Run[K comparable, T any](ctx context.Context, s *Serializer[K], key K, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T

	err := s.Do(ctx, key, func(ctx context.Context) error {
		var err error

		result, err = fn(ctx)

		return err
	})

	return result, err
}

// Len returns the number of keys with running or waiting operations.
func (s *Serializer[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.tails)
}

// Pending returns the number of running or waiting operations for key.
func (s *Serializer[K]) Pending(key K) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tails[key]; ok {
		return t.pending
	}

	return 0
}

func (s *Serializer[K]) enqueue(key K) (prev, mine chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tails[key]
	if !ok {
		t = &tail{}
		s.tails[key] = t
	}

	prev = t.done
	mine = make(chan struct{})
	t.done = mine
	t.pending++

	return prev, mine
}

// finish releases the next operation and drops the key once nothing is queued on it.
func (s *Serializer[K]) finish(key K, mine chan struct{}) {
	close(mine)

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tails[key]

	t.pending--
	if t.pending == 0 {
		delete(s.tails, key)
	}
}
