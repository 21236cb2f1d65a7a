package utils

// CloneMapShallow copies a map, copying each key and value by assignment. Values that are
// themselves references remain shared with the original.
func CloneMapShallow[K comparable, V any](m map[K]V) map[K]V {
	r := make(map[K]V, len(m))
	for k, v := range m {
		r[k] = v
	}
	return r
}
