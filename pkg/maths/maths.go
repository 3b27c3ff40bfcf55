// Package maths holds small numeric helpers.
package maths

import (
	"math"
)

// BytesPerMB is the divisor used for megabyte sizes (binary megabytes).
const BytesPerMB = 1024 * 1024

// RoundTo rounds v half away from zero to the given number of decimals.
// NaN and infinities collapse to 0.
func RoundTo(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}

	p := math.Pow10(places)

	return math.Round(v*p) / p
}

// MB converts a byte count to megabytes rounded to two decimals.
func MB(size int64) float64 {
	return RoundTo(float64(size)/BytesPerMB, 2)
}
