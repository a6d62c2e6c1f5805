package vars

import "cmp"

// FirstNonZero returns the first value that is not the zero value, in precedence order.
// Flag, environment, settings and default layers are usually passed in that order.
func FirstNonZero[T comparable](values ...T) T {
	var zero T
	for _, value := range values {
		if value != zero {
			return value
		}
	}
	return zero
}

func PtrTo[T any](v T) *T {
	return &v
}

func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}
