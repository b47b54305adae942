package xtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqual(t *testing.T) {
	assert.True(t, Equal([]int64{}, []int64(nil)))
	assert.True(t, Equal([]int64{3, 1, 2}, []int64{1, 2, 3}, SortInt64s))
	assert.False(t, Equal([]int64{3, 1, 2}, []int64{1, 2, 3}))

	s := ""
	assert.True(t, Equal(&s, (*string)(nil), NilStringAsEmpty))
}

func TestDiff(t *testing.T) {
	require.Empty(t, Diff([]int64{1, 2}, []int64{2, 1}, SortInt64s))
	require.NotEmpty(t, Diff([]int64{1}, []int64{2}))
}

func TestSortedInt64s(t *testing.T) {
	in := []int64{5, 1, 3}
	require.Equal(t, []int64{1, 3, 5}, SortedInt64s(in))
	require.Equal(t, []int64{5, 1, 3}, in)
}
