package utils

// SliceSelect projects each element of a slice through f into a new slice.
func SliceSelect[T any, K any](x []T, f func(x T) K) []K {
	r := make([]K, len(x))
	for i := 0; i < len(x); i++ {
		r[i] = f(x[i])
	}
	return r
}

// SliceWhere returns the elements of a slice satisfying f, in order.
func SliceWhere[T any](x []T, f func(x T) bool) []T {
	r := make([]T, 0)
	for i := 0; i < len(x); i++ {
		if f(x[i]) {
			r = append(r, x[i])
		}
	}
	return r
}

// SliceReversed returns a new slice holding the elements of x in reverse order.
func SliceReversed[T any](x []T) []T {
	r := make([]T, len(x))
	for i := 0; i < len(x); i++ {
		r[i] = x[len(x)-1-i]
	}
	return r
}
