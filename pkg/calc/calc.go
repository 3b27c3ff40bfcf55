// Package calc derives transfer statistics from byte counters.
package calc

import (
	"time"
)

// Percent returns downloaded/total*100 clamped to [0, 100], or 0 when total is unknown.
func Percent(downloaded, total int) float64 {
	if total <= 0 || downloaded <= 0 {
		return 0
	}

	return min(float64(downloaded)/float64(total)*100, 100)
}

// Speed returns the average rate in bytes per second over elapsed.
func Speed(downloaded int, elapsed time.Duration) float64 {
	if elapsed <= 0 || downloaded <= 0 {
		return 0
	}

	return float64(downloaded) / elapsed.Seconds()
}

// ETA extrapolates the remaining time from the average rate so far.
func ETA(downloaded, total int, elapsed time.Duration) time.Duration {
	if total <= 0 || downloaded <= 0 || downloaded >= total || elapsed <= 0 {
		return 0
	}

	return time.Duration(float64(elapsed) * (float64(total)/float64(downloaded) - 1))
}
