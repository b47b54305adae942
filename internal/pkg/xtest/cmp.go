package xtest

import (
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func nilString(x *string) string {
	if x == nil {
		return ""
	}

	return *x
}

// SortInt64s compares int64 slices as sets of values.
var SortInt64s = cmpopts.SortSlices(func(a, b int64) bool { return a < b })

// NilStringAsEmpty treats a nil *string as "".
var NilStringAsEmpty = cmp.Transformer("nilString", nilString)

// Equal compares with EquateEmpty plus the given options.
func Equal(a, b any, opts ...cmp.Option) bool {
	allOpts := append([]cmp.Option{cmpopts.EquateEmpty()}, opts...)

	return cmp.Equal(a, b, allOpts...)
}

// Diff reports the difference between want and got with the same options as Equal.
func Diff(want, got any, opts ...cmp.Option) string {
	allOpts := append([]cmp.Option{cmpopts.EquateEmpty()}, opts...)

	return cmp.Diff(want, got, allOpts...)
}

// SortedInt64s returns a sorted copy of ids.
func SortedInt64s(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}
