package ringbuffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	require.Equal(t, 3, New[int](3).Capacity())
	require.Equal(t, 1, New[int](0).Capacity())
	require.Equal(t, 1, New[int](-5).Capacity())
}

func TestRingBuffer_Latest(t *testing.T) {
	rb := New[int](3)
	require.Empty(t, rb.Latest(0))

	rb.Push(1)
	rb.Push(2)
	require.Equal(t, []int{2, 1}, rb.Latest(0))
	require.Equal(t, []int{2}, rb.Latest(1))

	rb.Push(3)
	rb.Push(4)
	rb.Push(5)
	require.Equal(t, 3, rb.Len())
	require.Equal(t, []int{5, 4, 3}, rb.Latest(10))
	require.Equal(t, []int{5, 4}, rb.Latest(2))
}

func TestRingBuffer_ConcurrentPush(t *testing.T) {
	rb := New[int](8)

	var wg sync.WaitGroup

	for i := range 100 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			rb.Push(i)
			_ = rb.Latest(3)
		}()
	}

	wg.Wait()
	require.Equal(t, 8, rb.Len())
}
