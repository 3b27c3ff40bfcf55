// Package humanfmt renders durations and byte counts for display.
package humanfmt

import (
	"fmt"
	"math"
	"time"
)

// Unknown is rendered for a zero or missing duration.
const Unknown = "Unknown"

const unitStep = 1024

var units = []string{"B", "KB", "MB", "GB"}

// Duration renders seconds as H:MM:SS when hours > 0, else M:SS.
func Duration(seconds int) string {
	if seconds <= 0 {
		return Unknown
	}

	h := seconds / 3600
	m := seconds % 3600 / 60
	s := seconds % 60

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}

	return fmt.Sprintf("%d:%02d", m, s)
}

// Bytes scales n through B, KB, MB, GB and TB with one decimal,
// stopping at the first unit where the magnitude is below 1024.
// Zero renders as the empty string.
func Bytes(n float64) string {
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return ""
	}

	for _, unit := range units {
		if math.Abs(n) < unitStep {
			return fmt.Sprintf("%.1f %s", n, unit)
		}

		n /= unitStep
	}

	return fmt.Sprintf("%.1f TB", n)
}

// Speed renders a bytes-per-second rate, or "" when the rate is unknown.
func Speed(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return ""
	}

	return Bytes(bytesPerSec) + "/s"
}

// ETA renders a remaining duration in whole seconds, or "" when unknown.
func ETA(d time.Duration) string {
	if d <= 0 {
		return ""
	}

	return fmt.Sprintf("%ds", int(d.Round(time.Second).Seconds()))
}
