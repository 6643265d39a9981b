// Package sink records consumed analytics events.
package sink

import (
	"go.uber.org/zap"

	"github.com/example/membership-portal/internal/platform/analytics"
	"github.com/example/membership-portal/internal/platform/metrics"
)

// Metrics turns events into Prometheus counters and an info log line per
// completion or membership change.
type Metrics struct {
	log *zap.Logger
}

func NewMetrics(log *zap.Logger) *Metrics {
	if log == nil {
		log = zap.NewNop()
	}
	return &Metrics{log: log}
}

func (m *Metrics) Capture(ev analytics.Event) {
	metrics.AnalyticsEvents.WithLabelValues(ev.EventName).Inc()
}

func (m *Metrics) LessonViewed(ev analytics.Event, kind string) {
	m.Capture(ev)
	if kind == "" {
		kind = "unknown"
	}
	metrics.LessonViews.WithLabelValues(kind).Inc()
}

func (m *Metrics) Milestone(ev analytics.Event) {
	m.Capture(ev)
	m.log.Info("analytics milestone",
		zap.String("event", ev.EventName),
		zap.String("user_id", ev.UserID),
		zap.Any("properties", ev.Properties),
	)
}
