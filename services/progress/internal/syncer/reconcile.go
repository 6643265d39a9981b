package syncer

import (
	"time"

	"github.com/example/membership-portal/internal/progress"
)

// Outcome describes what a reconciled write did.
type Outcome struct {
	// Applied is false when the incoming position lost to the stored one.
	Applied bool
	// Sampled means a heartbeat sample is due for this write.
	Sampled bool
	// Completed is true when this write moved the record to completed.
	Completed bool
}

// Reconcile computes the next record from the stored one (nil on first write)
// and an already validated request. It is pure: now and the fallback duration
// come from the caller. The fallback is only used when neither the request nor
// the stored record knows the duration.
func Reconcile(existing *progress.Record, in progress.SyncRequest, fallbackDuration int, now time.Time, heartbeatEvery time.Duration) (progress.Record, Outcome) {
	var out Outcome
	rawPos := *in.Position

	dur := 0
	switch {
	case in.Duration != nil && *in.Duration > 0:
		dur = progress.Seconds(*in.Duration)
	case existing != nil && existing.DurationSeconds > 0:
		dur = existing.DurationSeconds
	default:
		dur = fallbackDuration
	}
	// Only the incoming position is clamped; a stored position is never cut
	// down by a duration reported alongside someone else's write.
	pos := progress.ClampPosition(progress.Seconds(rawPos), dur)

	wasCompleted := existing != nil && existing.Completed
	completed := wasCompleted || in.Completed || progress.IsComplete(rawPos, float64(dur))

	clock := in.ClientTsMs
	if clock <= 0 {
		clock = now.UnixMilli()
	}

	next := progress.Record{
		PositionSeconds: pos,
		DurationSeconds: dur,
		Completed:       completed,
		DeviceID:        in.DeviceID,
		PlaybackState:   in.State,
		PlaybackSpeed:   1,
		ClientTsMs:      clock,
		LastWatched:     now,
		LastHeartbeat:   now,
	}
	if in.PlaybackSpeed != nil {
		next.PlaybackSpeed = *in.PlaybackSpeed
	}

	if existing == nil {
		out.Applied = true
		out.Sampled = true
		out.Completed = completed
		return next, out
	}

	switch {
	case pos >= existing.PositionSeconds:
		out.Applied = true
	case in.Completed:
		out.Applied = true
	case in.ClientTsMs > 0 && in.ClientTsMs > existing.ClientTsMs:
		out.Applied = true
	}
	if !out.Applied {
		next.PositionSeconds = existing.PositionSeconds
		next.DurationSeconds = retainedDuration(existing, dur)
	}

	if next.DeviceID == "" {
		next.DeviceID = existing.DeviceID
	}
	if in.PlaybackSpeed == nil && existing.PlaybackSpeed > 0 {
		next.PlaybackSpeed = existing.PlaybackSpeed
	}
	if existing.ClientTsMs > next.ClientTsMs {
		next.ClientTsMs = existing.ClientTsMs
	}
	if now.Sub(existing.LastHeartbeat) >= heartbeatEvery {
		out.Sampled = true
	} else {
		next.LastHeartbeat = existing.LastHeartbeat
	}

	out.Completed = completed && !wasCompleted
	return next, out
}

// retainedDuration is the duration kept by a write that lost reconciliation:
// the stored one, or the incoming one when nothing was stored and it still
// covers the stored position.
func retainedDuration(existing *progress.Record, incoming int) int {
	if existing.DurationSeconds > 0 {
		return existing.DurationSeconds
	}
	if incoming > existing.PositionSeconds {
		return incoming
	}
	return 0
}
