package fn

// Map applies f to each element. The result is never nil.
func Map[T, U any](items []T, f func(T) U) []U {
	out := make([]U, len(items))
	for i, v := range items {
		out[i] = f(v)
	}
	return out
}

// Filter keeps the elements accepted by keep, in order. The result is never nil.
func Filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, v := range items {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// Uniq drops repeated elements, keeping first occurrences in order.
func Uniq[T comparable](items []T) []T {
	seen := make(map[T]struct{}, len(items))
	return Filter(items, func(v T) bool {
		if _, dup := seen[v]; dup {
			return false
		}
		seen[v] = struct{}{}
		return true
	})
}
