package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/membership-portal/internal/playback"
	"github.com/example/membership-portal/internal/progress"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) AfterFunc(d time.Duration, f func()) playback.Timer {
	return time.AfterFunc(d, f)
}

func (c *stepClock) step(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMedia_AdvancesWhilePlaying(t *testing.T) {
	clock := &stepClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	m := NewMedia(clock, 600, 2, 1)

	clock.step(10 * time.Second)
	require.Equal(t, 0.0, m.CurrentTime(), "paused media must not advance")

	m.Play()
	clock.step(10 * time.Second)
	require.Equal(t, 20.0, m.CurrentTime())

	m.Pause()
	clock.step(time.Minute)
	require.Equal(t, 20.0, m.CurrentTime())

	m.Seek(590)
	m.Play()
	clock.step(time.Minute)
	require.Equal(t, 600.0, m.CurrentTime(), "position clamps to duration")
	require.True(t, m.Ended())
}

func TestMedia_UnknownDurationNeverEnds(t *testing.T) {
	clock := &stepClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	m := NewMedia(clock, 0, 1, 1)
	m.Play()
	clock.step(time.Hour)
	require.False(t, m.Ended())
	require.Equal(t, 3600.0, m.CurrentTime())

	m.Seek(-5)
	require.Equal(t, 0.0, m.CurrentTime())
}

type fakeTransport struct {
	mu      sync.Mutex
	view    *progress.View
	sends   []progress.SyncRequest
	beacons []progress.SyncRequest
}

func (f *fakeTransport) Send(_ context.Context, req progress.SyncRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, req)
	return nil
}

func (f *fakeTransport) Fetch(context.Context, string) (*progress.View, error) {
	return f.view, nil
}

func (f *fakeTransport) Beacon(req progress.SyncRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beacons = append(f.beacons, req)
}

func (f *fakeTransport) snapshot() ([]progress.SyncRequest, []progress.SyncRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]progress.SyncRequest(nil), f.sends...), append([]progress.SyncRequest(nil), f.beacons...)
}

func scenario(exit string) Scenario {
	return Scenario{
		UserID:          "user-1",
		ContentItemID:   "lesson-1",
		DurationSeconds: 600,
		PlaybackRate:    1,
		TimeScale:       100,
		WatchFor:        150 * time.Millisecond,
		Exit:            exit,
		SampleInterval:  20 * time.Millisecond,
		ThrottleWindow:  50 * time.Millisecond,
	}
}

func TestViewer_ResumesAndPauses(t *testing.T) {
	tr := &fakeTransport{view: &progress.View{ContentItemID: "lesson-1", PositionSeconds: 30, DurationSeconds: 600}}
	v := Viewer{DeviceID: "dev-1", Transport: tr}

	sum, err := v.Run(context.Background(), scenario(ExitPause))
	require.NoError(t, err)
	require.Equal(t, 30, sum.ResumedAt)
	require.False(t, sum.Ended)
	require.Greater(t, sum.FinalPosition, 30.0)

	sends, beacons := tr.snapshot()
	require.NotEmpty(t, sends)
	require.Empty(t, beacons)
	last := sends[len(sends)-1]
	require.Equal(t, progress.StatePaused, last.State)
	require.Equal(t, "dev-1", last.DeviceID)
	require.GreaterOrEqual(t, *last.Position, 30.0)
}

func TestViewer_UnloadUsesBeacon(t *testing.T) {
	tr := &fakeTransport{}
	v := Viewer{DeviceID: "dev-2", Transport: tr}

	sum, err := v.Run(context.Background(), scenario(ExitUnload))
	require.NoError(t, err)
	require.Equal(t, 0, sum.ResumedAt)

	_, beacons := tr.snapshot()
	require.NotEmpty(t, beacons)
	require.True(t, beacons[len(beacons)-1].Immediate)
}

func TestViewer_PlaysToEnd(t *testing.T) {
	tr := &fakeTransport{}
	sc := scenario(ExitPause)
	sc.DurationSeconds = 10
	sc.TimeScale = 1000
	sc.WatchFor = time.Second

	sum, err := Viewer{DeviceID: "dev-3", Transport: tr}.Run(context.Background(), sc)
	require.NoError(t, err)
	require.True(t, sum.Ended)

	sends, _ := tr.snapshot()
	last := sends[len(sends)-1]
	require.Equal(t, progress.StateStopped, last.State)
	require.True(t, last.Completed)
}

func TestViewer_SeeksAreCounted(t *testing.T) {
	tr := &fakeTransport{}
	sc := scenario(ExitStop)
	sc.SeekEvery = 40 * time.Millisecond
	sc.SeekBy = 5

	sum, err := Viewer{DeviceID: "dev-4", Transport: tr}.Run(context.Background(), sc)
	require.NoError(t, err)
	require.GreaterOrEqual(t, sum.Seeks, 1)
}
