// Package ptr provides helpers for optional values decoded from JSON.
package ptr

// Deref returns the value pointed to by p, or the zero value when p is nil.
func Deref[T any](p *T) T {
	if p == nil {
		var zero T

		return zero
	}

	return *p
}

// Coalesce returns the first non-nil, non-zero value among ps, or fallback.
func Coalesce[T comparable](fallback T, ps ...*T) T {
	var zero T

	for _, p := range ps {
		if p != nil && *p != zero {
			return *p
		}
	}

	return fallback
}
