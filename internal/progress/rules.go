// Package progress holds the rules and wire types shared by the sync endpoint
// and the playback client.
package progress

import "math"

// CompletedThreshold is the watch ratio at which a content item counts as completed.
const CompletedThreshold = 0.90

// IsComplete reports whether position reaches the completion threshold of duration.
// An unknown (zero or negative) duration never completes.
func IsComplete(position, duration float64) bool {
	if duration <= 0 {
		return false
	}
	return position >= CompletedThreshold*duration
}

// ClampPosition keeps position inside [0, duration-1] when duration is known,
// so a resume never seeks to the exact end of the media.
func ClampPosition(position, duration int) int {
	if position < 0 {
		position = 0
	}
	if duration > 0 && position > duration-1 {
		position = duration - 1
	}
	return position
}

// Seconds converts a client-reported offset to whole seconds, flooring and
// rejecting non-finite values as zero.
func Seconds(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0
	}
	if v >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(v))
}
