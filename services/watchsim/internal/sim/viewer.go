package sim

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/membership-portal/internal/playback"
)

const (
	ExitPause  = "pause"
	ExitStop   = "stop"
	ExitUnload = "unload"
)

// Transport is what one simulated tab needs from the portal.
// *playback.HTTPTransport satisfies it.
type Transport interface {
	playback.Sender
	playback.ProgressReader
	playback.Beacon
}

type Scenario struct {
	UserID          string
	ContentItemID   string
	DurationSeconds float64
	PlaybackRate    float64
	TimeScale       float64
	WatchFor        time.Duration
	SeekEvery       time.Duration
	SeekBy          float64
	Exit            string
	SampleInterval  time.Duration
	ThrottleWindow  time.Duration
	BeaconGrace     time.Duration
}

// Summary describes one finished session.
type Summary struct {
	DeviceID      string  `json:"deviceId"`
	ResumedAt     int     `json:"resumedAt"`
	FinalPosition float64 `json:"finalPosition"`
	Seeks         int     `json:"seeks"`
	Ended         bool    `json:"ended"`
	Exit          string  `json:"exit"`
}

// Viewer plays one session of a scenario.
type Viewer struct {
	DeviceID  string
	Transport Transport
	Clock     playback.Clock
	Log       *zap.Logger
}

// Run mounts, plays, optionally scrubs, then leaves the way the scenario says.
// Cancelling ctx ends the session early through the same exit path.
func (v Viewer) Run(ctx context.Context, sc Scenario) (Summary, error) {
	clock := v.Clock
	if clock == nil {
		clock = playback.RealClock()
	}
	log := v.Log
	if log == nil {
		log = zap.NewNop()
	}

	media := NewMedia(clock, sc.DurationSeconds, sc.PlaybackRate, sc.TimeScale)
	sched := playback.NewScheduler(v.Transport, clock, log, playback.SchedulerConfig{ThrottleWindow: sc.ThrottleWindow})
	tracker := playback.NewTracker(
		playback.ClientContext{UserID: sc.UserID, DeviceID: v.DeviceID},
		sc.ContentItemID,
		playback.TrackerDeps{
			Media:     media,
			Scheduler: sched,
			Reader:    v.Transport,
			Beacon:    v.Transport,
			Clock:     clock,
			Logger:    log,
		},
		playback.TrackerConfig{SampleInterval: sc.SampleInterval},
	)

	sum := Summary{DeviceID: v.DeviceID, Exit: sc.Exit}
	sum.ResumedAt = tracker.Mount(ctx)
	media.Play()
	tracker.Play()

	sum.Seeks, sum.Ended = v.watch(ctx, sc, media, tracker)
	if sum.Ended {
		media.Pause()
		tracker.Ended()
	} else {
		leave(sc.Exit, media, tracker)
	}
	sum.FinalPosition = media.CurrentTime()

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := tracker.Close(closeCtx)
	if sc.Exit == ExitUnload && sc.BeaconGrace > 0 {
		// The beacon posts on its own goroutine; give it time before the process exits.
		time.Sleep(sc.BeaconGrace)
	}
	return sum, err
}

func (v Viewer) watch(ctx context.Context, sc Scenario, media *Media, tracker *playback.Tracker) (seeks int, ended bool) {
	deadline := time.NewTimer(sc.WatchFor)
	defer deadline.Stop()

	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()

	var seekC <-chan time.Time
	if sc.SeekEvery > 0 {
		seek := time.NewTicker(sc.SeekEvery)
		defer seek.Stop()
		seekC = seek.C
	}

	for {
		select {
		case <-ctx.Done():
			return seeks, false
		case <-deadline.C:
			return seeks, media.Ended()
		case <-seekC:
			media.Seek(media.CurrentTime() + sc.SeekBy)
			tracker.Seek()
			seeks++
		case <-poll.C:
			if media.Ended() {
				return seeks, true
			}
		}
	}
}

func leave(exit string, media *Media, tracker *playback.Tracker) {
	switch exit {
	case ExitStop:
		media.Pause()
		tracker.Stop()
	case ExitUnload:
		tracker.Hide()
		tracker.Unload()
	default:
		media.Pause()
		tracker.Pause()
	}
}
