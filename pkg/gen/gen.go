// Package gen provides utility functions for generating values.
package gen

import (
	"strings"

	"github.com/google/uuid"
)

const uuidHexLen = 32

// ShortID returns the first n hex digits of a random UUIDv4.
// n is clamped to [1, 32].
func ShortID(n int) string {
	n = min(max(n, 1), uuidHexLen)

	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

// IDFunc produces task identifiers. Tests substitute a deterministic sequence.
type IDFunc func() string

// ShortIDFunc returns an IDFunc producing ShortID(n).
func ShortIDFunc(n int) IDFunc {
	return func() string { return ShortID(n) }
}
