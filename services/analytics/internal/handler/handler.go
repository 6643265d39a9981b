// Package handler routes analytics.* messages to a sink.
package handler

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/example/membership-portal/internal/platform/analytics"
)

var ErrMalformed = errors.New("analytics: malformed event")

// Sink receives decoded events. *sink.Metrics satisfies it.
type Sink interface {
	Capture(ev analytics.Event)
	LessonViewed(ev analytics.Event, kind string)
	Milestone(ev analytics.Event)
}

type Dispatcher struct {
	sink Sink
	log  *zap.Logger
}

func New(s Sink, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{sink: s, log: log}
}

// Dispatch decodes data and routes it by subject. Unknown subjects are counted
// under their event name and otherwise ignored.
func (d *Dispatcher) Dispatch(subject string, data []byte) error {
	var ev analytics.Event
	if err := json.Unmarshal(data, &ev); err != nil || ev.EventName == "" {
		d.log.Warn("analytics: unmarshal message", zap.String("subject", subject), zap.Error(err))
		return ErrMalformed
	}

	switch subject {
	case analytics.SubjectLessonViewed:
		kind, _ := ev.Properties["kind"].(string)
		d.sink.LessonViewed(ev, kind)
	case analytics.SubjectProgressCompleted, analytics.SubjectMemberProvisioned, analytics.SubjectMemberDeactivated:
		d.sink.Milestone(ev)
	case analytics.SubjectProgressSynced:
		d.sink.Capture(ev)
	default:
		d.log.Debug("analytics: unhandled subject", zap.String("subject", subject))
		d.sink.Capture(ev)
	}
	return nil
}
