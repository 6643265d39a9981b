package handler

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/membership-portal/internal/platform/analytics"
)

type recordingSink struct {
	captured   []string
	kinds      []string
	milestones []string
}

func (s *recordingSink) Capture(ev analytics.Event) { s.captured = append(s.captured, ev.EventName) }

func (s *recordingSink) LessonViewed(ev analytics.Event, kind string) {
	s.kinds = append(s.kinds, kind)
}

func (s *recordingSink) Milestone(ev analytics.Event) {
	s.milestones = append(s.milestones, ev.EventName)
}

func encode(t *testing.T, name string, props map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(analytics.Event{EventID: "e-1", EventName: name, UserID: "u-1", OccurredAt: time.Now(), Properties: props})
	require.NoError(t, err)
	return b
}

func TestDispatch_RoutesBySubject(t *testing.T) {
	s := &recordingSink{}
	d := New(s, nil)

	require.NoError(t, d.Dispatch(analytics.SubjectLessonViewed, encode(t, "lesson_viewed", map[string]any{"kind": "podcast"})))
	require.NoError(t, d.Dispatch(analytics.SubjectProgressCompleted, encode(t, "progress_completed", nil)))
	require.NoError(t, d.Dispatch(analytics.SubjectMemberProvisioned, encode(t, "member_provisioned", nil)))
	require.NoError(t, d.Dispatch(analytics.SubjectProgressSynced, encode(t, "progress_synced", nil)))
	require.NoError(t, d.Dispatch("analytics.other.thing", encode(t, "other", nil)))

	require.Equal(t, []string{"podcast"}, s.kinds)
	require.Equal(t, []string{"progress_completed", "member_provisioned"}, s.milestones)
	require.Equal(t, []string{"progress_synced", "other"}, s.captured)
}

func TestDispatch_Malformed(t *testing.T) {
	d := New(&recordingSink{}, nil)
	if err := d.Dispatch(analytics.SubjectProgressSynced, []byte("{")); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if err := d.Dispatch(analytics.SubjectProgressSynced, []byte(`{"event_id":"x"}`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("missing event name should be malformed, got %v", err)
	}
}
