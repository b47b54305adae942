package ringbuffer

import (
	"sync"
)

// RingBuffer keeps the most recent values up to a fixed capacity. Pushing
// into a full buffer overwrites the oldest value.
type RingBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
	size     int
	next     int
}

func New[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = 1
	}

	return &RingBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

func (rb *RingBuffer[T]) Push(value T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.items[rb.next] = value
	rb.next = (rb.next + 1) % rb.capacity

	if rb.size < rb.capacity {
		rb.size++
	}
}

// Latest returns up to n values, newest first. A non-positive n returns all.
func (rb *RingBuffer[T]) Latest(n int) []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n <= 0 || n > rb.size {
		n = rb.size
	}

	out := make([]T, 0, n)

	for i := 1; i <= n; i++ {
		idx := (rb.next - i + rb.capacity) % rb.capacity
		out = append(out, rb.items[idx])
	}

	return out
}

func (rb *RingBuffer[T]) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	return rb.size
}

func (rb *RingBuffer[T]) Capacity() int {
	return rb.capacity
}
