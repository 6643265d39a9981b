package playback

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/membership-portal/internal/progress"
)

// Idle is the tracker state before playback first starts. It never goes on the wire.
const Idle progress.State = "idle"

// ClientContext identifies who is watching and from which device.
type ClientContext struct {
	UserID   string
	DeviceID string
}

// Media is the player the tracker observes.
type Media interface {
	CurrentTime() float64
	// Duration returns 0 while unknown.
	Duration() float64
	PlaybackRate() float64
	Seek(seconds float64)
}

// ProgressReader loads the stored resume position; a nil view means no record.
type ProgressReader interface {
	Fetch(ctx context.Context, contentItemID string) (*progress.View, error)
}

// Beacon delivers a payload during page teardown. It must not block and
// nothing is retried.
type Beacon interface {
	Beacon(req progress.SyncRequest)
}

type TrackerConfig struct {
	SampleInterval time.Duration
	ResumeTimeout  time.Duration
}

type Tracker struct {
	client ClientContext
	itemID string
	media  Media
	sched  *Scheduler
	reader ProgressReader
	beacon Beacon
	clock  Clock
	log    *zap.Logger
	cfg    TrackerConfig

	mu          sync.Mutex
	state       progress.State
	sampleGen   uint64
	sampleTimer Timer
}

type TrackerDeps struct {
	Media     Media
	Scheduler *Scheduler
	Reader    ProgressReader
	Beacon    Beacon
	Clock     Clock
	Logger    *zap.Logger
}

func NewTracker(client ClientContext, contentItemID string, deps TrackerDeps, cfg TrackerConfig) *Tracker {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 5 * time.Second
	}
	if cfg.ResumeTimeout <= 0 {
		cfg.ResumeTimeout = 3 * time.Second
	}
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Tracker{
		client: client,
		itemID: contentItemID,
		media:  deps.Media,
		sched:  deps.Scheduler,
		reader: deps.Reader,
		beacon: deps.Beacon,
		clock:  deps.Clock,
		log: deps.Logger.With(
			zap.String("user_id", client.UserID),
			zap.String("device_id", client.DeviceID),
			zap.String("content_item_id", contentItemID),
		),
		cfg:   cfg,
		state: Idle,
	}
}

func (t *Tracker) State() progress.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Mount reads the stored position and seeks there before playback starts.
// Any failure leaves the media at 0. It returns the position sought to.
func (t *Tracker) Mount(ctx context.Context) int {
	if t.reader == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, t.cfg.ResumeTimeout)
	defer cancel()

	view, err := t.reader.Fetch(ctx, t.itemID)
	if err != nil {
		t.log.Debug("resume read failed, starting at 0", zap.Error(err))
		return 0
	}
	if view == nil {
		return 0
	}
	dur := progress.Seconds(t.media.Duration())
	if dur == 0 {
		dur = view.DurationSeconds
	}
	pos := progress.ClampPosition(view.PositionSeconds, dur)
	if pos > 0 {
		t.media.Seek(float64(pos))
	}
	return pos
}

func (t *Tracker) Play() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == progress.StatePlaying {
		return
	}
	t.state = progress.StatePlaying
	t.startSamplingLocked()
	t.sched.Schedule(Throttled, t.payloadLocked(false))
}

func (t *Tracker) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != progress.StatePlaying {
		return
	}
	t.state = progress.StatePaused
	t.stopSamplingLocked()
	t.sched.Schedule(Immediate, t.payloadLocked(false))
}

// Seek reports a user scrub. Bursts collapse into one send of the final position.
func (t *Tracker) Seek() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sched.Schedule(Debounced, t.payloadLocked(false))
}

// Stop ends the session and reports whether the final position completes the item.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = progress.StateStopped
	t.stopSamplingLocked()
	req := t.payloadLocked(false)
	if req.Duration != nil {
		req.Completed = progress.IsComplete(*req.Position, *req.Duration)
	}
	t.sched.Schedule(Immediate, req)
}

// Ended is called when the media reaches its end.
func (t *Tracker) Ended() { t.Stop() }

func (t *Tracker) MarkComplete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sched.Schedule(Immediate, t.payloadLocked(true))
}

// Hide fires the current position through the beacon; the page may never come back.
func (t *Tracker) Hide() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fireBeaconLocked()
}

// Unload is the last call before teardown. Pending scheduled payloads are
// dropped in favour of the beacon, which carries a newer position.
func (t *Tracker) Unload() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopSamplingLocked()
	t.sched.CancelAll()
	t.fireBeaconLocked()
}

// Close stops sampling, flushes what is pending and waits for the scheduler to drain.
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	t.stopSamplingLocked()
	t.mu.Unlock()
	return t.sched.Stop(ctx)
}

func (t *Tracker) fireBeaconLocked() {
	if t.beacon == nil {
		return
	}
	req := t.payloadLocked(false)
	req.Immediate = true
	t.beacon.Beacon(req)
}

func (t *Tracker) startSamplingLocked() {
	t.stopSamplingLocked()
	gen := t.sampleGen
	t.sampleTimer = t.clock.AfterFunc(t.cfg.SampleInterval, func() { t.sample(gen) })
}

func (t *Tracker) stopSamplingLocked() {
	if t.sampleTimer != nil {
		t.sampleTimer.Stop()
		t.sampleTimer = nil
	}
	t.sampleGen++
}

func (t *Tracker) sample(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.sampleGen || t.state != progress.StatePlaying {
		return
	}
	t.sched.Schedule(Throttled, t.payloadLocked(false))
	t.sampleTimer = t.clock.AfterFunc(t.cfg.SampleInterval, func() { t.sample(gen) })
}

func (t *Tracker) payloadLocked(completed bool) progress.SyncRequest {
	pos := t.media.CurrentTime()
	if pos < 0 {
		pos = 0
	}
	state := t.state
	if state == Idle {
		state = progress.StatePaused
	}
	req := progress.SyncRequest{
		ContentItemID: t.itemID,
		Position:      &pos,
		State:         state,
		DeviceID:      t.client.DeviceID,
		Completed:     completed,
		ClientTsMs:    t.clock.Now().UnixMilli(),
	}
	if d := t.media.Duration(); d > 0 {
		req.Duration = &d
	}
	if r := t.media.PlaybackRate(); r > 0 {
		req.PlaybackSpeed = &r
	}
	return req
}
