// Package syncer reconciles incoming progress writes against the stored record.
package syncer

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/membership-portal/internal/platform/analytics"
	"github.com/example/membership-portal/internal/platform/metrics"
	"github.com/example/membership-portal/internal/platform/validate"
	"github.com/example/membership-portal/internal/progress"
	"github.com/example/membership-portal/services/progress/internal/store"
)

const (
	TransportHTTP   = "http"
	TransportBeacon = "beacon"
	TransportQueue  = "queue"
)

// DurationLookup supplies the catalog duration when neither the client nor the
// stored record knows it.
type DurationLookup interface {
	Duration(ctx context.Context, contentItemID string) (int, bool)
}

type Config struct {
	HeartbeatInterval time.Duration
}

type Service struct {
	repo      store.Repository
	durations DurationLookup
	pub       *analytics.Publisher
	log       *zap.Logger
	now       func() time.Time
	heartbeat time.Duration
}

func New(repo store.Repository, durations DurationLookup, pub *analytics.Publisher, log *zap.Logger, cfg Config) *Service {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		durations: durations,
		pub:       pub,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
		heartbeat: cfg.HeartbeatInterval,
	}
}

type Result struct {
	Record  progress.Record
	Applied bool
}

// Source tells Sync how a write arrived. EventID is set for queued writes.
type Source struct {
	Transport string
	EventID   string
	Subject   string
}

// Sync validates req and applies it for userID.
func (s *Service) Sync(ctx context.Context, userID string, req progress.SyncRequest, src Source) (Result, error) {
	if strings.TrimSpace(userID) == "" {
		return Result{}, progress.ErrUnauthenticated
	}
	if src.Transport == "" {
		src.Transport = TransportHTTP
	}
	req.ContentItemID = strings.TrimSpace(req.ContentItemID)
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	if errs := validate.Struct(req); errs != nil {
		metrics.ProgressSyncs.WithLabelValues("invalid", src.Transport).Inc()
		return Result{}, &progress.ValidationError{Fields: errs}
	}

	var outcome Outcome
	rec, err := s.repo.Apply(ctx, store.Write{
		UserID:        userID,
		ContentItemID: req.ContentItemID,
		EventID:       src.EventID,
		Subject:       src.Subject,
		Mutate: func(existing *progress.Record) (store.Mutation, error) {
			next, o := Reconcile(existing, req, s.fallbackDuration(ctx, existing, req), s.now(), s.heartbeat)
			outcome = o
			return store.Mutation{Next: next, AppendSample: o.Sampled}, nil
		},
	})
	if err != nil {
		if !errors.Is(err, store.ErrDuplicateEvent) {
			metrics.ProgressSyncs.WithLabelValues("store_error", src.Transport).Inc()
		}
		return Result{}, err
	}

	result := "applied"
	if !outcome.Applied {
		result = "conflict_ignored"
	}
	metrics.ProgressSyncs.WithLabelValues(result, src.Transport).Inc()
	if outcome.Sampled {
		metrics.HeartbeatSamples.Inc()
		s.pub.Publish(analytics.SubjectProgressSynced, "progress_synced", userID, map[string]any{
			"content_item_id":  rec.ContentItemID,
			"position_seconds": rec.PositionSeconds,
			"device_id":        rec.DeviceID,
			"playback_state":   rec.PlaybackState,
		})
	}
	if outcome.Completed {
		metrics.ProgressCompletions.Inc()
		s.pub.Publish(analytics.SubjectProgressCompleted, "progress_completed", userID, map[string]any{
			"content_item_id":  rec.ContentItemID,
			"duration_seconds": rec.DurationSeconds,
		})
	}
	return Result{Record: rec, Applied: outcome.Applied}, nil
}

// fallbackDuration consults the catalog only when neither the request nor the
// locked record carries a duration.
func (s *Service) fallbackDuration(ctx context.Context, existing *progress.Record, req progress.SyncRequest) int {
	if s.durations == nil || (req.Duration != nil && *req.Duration > 0) {
		return 0
	}
	if existing != nil && existing.DurationSeconds > 0 {
		return 0
	}
	d, _ := s.durations.Duration(ctx, req.ContentItemID)
	return d
}

// Get returns the stored record, or nil when the pair has never synced.
func (s *Service) Get(ctx context.Context, userID, contentItemID string) (*progress.Record, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, progress.ErrUnauthenticated
	}
	contentItemID = strings.TrimSpace(contentItemID)
	if contentItemID == "" {
		return nil, &progress.ValidationError{Fields: map[string]string{"contentItemId": "is required"}}
	}
	rec, err := s.repo.Get(ctx, userID, contentItemID)
	if errors.Is(err, progress.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

type Page struct {
	Items      []progress.View `json:"items"`
	Limit      int             `json:"limit"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

// Continue lists unfinished items, most recently watched first.
func (s *Service) Continue(ctx context.Context, userID string, limit int, cursor string) (Page, error) {
	if strings.TrimSpace(userID) == "" {
		return Page{}, progress.ErrUnauthenticated
	}
	limit = clampLimit(limit, 25, 100)
	records, err := s.repo.List(ctx, userID, limit, decodeCursor(cursor))
	if err != nil {
		return Page{}, err
	}

	page := Page{Items: make([]progress.View, 0, len(records)), Limit: limit}
	for _, r := range records {
		v := r.ResumeView()
		v.ContentItemID = r.ContentItemID
		v.DurationSeconds = r.DurationSeconds
		page.Items = append(page.Items, v)
	}
	if len(records) == limit {
		last := records[len(records)-1]
		page.NextCursor = encodeCursor(last.LastWatched, last.ContentItemID)
	}
	return page, nil
}

func clampLimit(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

// encodeCursor packs last_watched (unix micros) and the content item id into an opaque token.
func encodeCursor(t time.Time, contentItemID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(t.UnixMicro(), 10) + ":" + contentItemID))
}

// decodeCursor parses the token produced by encodeCursor; garbage restarts from the top.
func decodeCursor(raw string) *store.Cursor {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	parts := strings.SplitN(string(b), ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil
	}
	us, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil
	}
	return &store.Cursor{LastWatched: time.UnixMicro(us).UTC(), ContentItemID: parts[1]}
}
