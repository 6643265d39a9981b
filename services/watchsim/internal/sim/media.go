// Package sim drives the playback tracker with a simulated player, standing in
// for a browser tab against a running portal.
package sim

import (
	"sync"
	"time"

	"github.com/example/membership-portal/internal/playback"
)

// Media is a player whose position advances with the clock while playing.
type Media struct {
	clock    playback.Clock
	duration float64
	rate     float64
	scale    float64

	mu        sync.Mutex
	base      float64
	startedAt time.Time
	playing   bool
}

// NewMedia returns a paused player at 0. A zero duration means unknown length.
func NewMedia(clock playback.Clock, duration, rate, scale float64) *Media {
	if rate <= 0 {
		rate = 1
	}
	if scale <= 0 {
		scale = 1
	}
	return &Media{clock: clock, duration: duration, rate: rate, scale: scale}
}

func (m *Media) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positionLocked()
}

func (m *Media) Duration() float64 { return m.duration }

func (m *Media) PlaybackRate() float64 { return m.rate }

func (m *Media) Seek(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.base = m.clamp(seconds)
	m.startedAt = m.clock.Now()
}

func (m *Media) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playing {
		return
	}
	m.playing = true
	m.startedAt = m.clock.Now()
}

func (m *Media) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.base = m.positionLocked()
	m.playing = false
}

// Ended reports whether a known-length media has played to its end.
func (m *Media) Ended() bool {
	if m.duration <= 0 {
		return false
	}
	return m.CurrentTime() >= m.duration
}

func (m *Media) positionLocked() float64 {
	pos := m.base
	if m.playing {
		pos += m.clock.Now().Sub(m.startedAt).Seconds() * m.rate * m.scale
	}
	return m.clamp(pos)
}

func (m *Media) clamp(pos float64) float64 {
	if pos < 0 {
		return 0
	}
	if m.duration > 0 && pos > m.duration {
		return m.duration
	}
	return pos
}
