// Package handlers exposes courses and lessons over HTTP.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/membership-portal/internal/platform/analytics"
	"github.com/example/membership-portal/internal/platform/api"
	"github.com/example/membership-portal/internal/platform/auth"
	"github.com/example/membership-portal/internal/platform/httpserver"
	"github.com/example/membership-portal/internal/platform/signing"
	"github.com/example/membership-portal/services/catalog/internal/store"
)

type Handler struct {
	store      store.CatalogStore
	signer     *signing.Signer
	streamBase string
	pub        *analytics.Publisher
	log        *zap.Logger
}

type Options struct {
	// Signer nil disables the playback endpoint.
	Signer     *signing.Signer
	StreamBase string
	Analytics  *analytics.Publisher
	Logger     *zap.Logger
}

func New(st store.CatalogStore, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Handler{store: st, signer: opts.Signer, streamBase: opts.StreamBase, pub: opts.Analytics, log: opts.Logger}
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

// ListCourses handles GET /v1/courses. Admins also see drafts.
func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.store.ListCourses(r.Context(), auth.IsAdmin(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if courses == nil {
		courses = []store.Course{}
	}
	api.WriteJSON(w, http.StatusOK, listResponse[store.Course]{Items: courses})
}

// ListLessons handles GET /v1/courses/{course_id}/lessons.
func (h *Handler) ListLessons(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "course_id")
	course, err := h.store.GetCourse(r.Context(), courseID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !course.Published && !auth.IsAdmin(r) {
		h.writeError(w, r, store.ErrNotFound)
		return
	}
	lessons, err := h.store.ListLessons(r.Context(), courseID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if lessons == nil {
		lessons = []store.Lesson{}
	}
	api.WriteJSON(w, http.StatusOK, listResponse[store.Lesson]{Items: lessons})
}

// GetLesson handles GET /v1/lessons/{lesson_id}.
func (h *Handler) GetLesson(w http.ResponseWriter, r *http.Request) {
	l, ok := h.visibleLesson(w, r)
	if !ok {
		return
	}
	api.WriteJSON(w, http.StatusOK, l)
}

// Playback handles GET /v1/lessons/{lesson_id}/playback.
func (h *Handler) Playback(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())
	if h.signer == nil {
		api.Unavailable(w, "PLAYBACK_DISABLED", "Playback signing is not configured", rid)
		return
	}
	l, ok := h.visibleLesson(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(l.MuxPlaybackID) == "" {
		api.NotFound(w, api.CodeNotFound, "Lesson has no video", rid)
		return
	}

	tok, err := h.signer.Playback(h.streamBase, l.MuxPlaybackID)
	if err != nil {
		httpserver.LoggerFor(r.Context(), h.log).Error("sign playback", zap.String("lesson_id", l.ID), zap.Error(err))
		api.Internal(w, rid)
		return
	}

	uid, _ := auth.UserIDFromContext(r.Context())
	h.pub.Publish(analytics.SubjectLessonViewed, "lesson_viewed", uid, map[string]any{
		"lesson_id": l.ID,
		"course_id": l.CourseID,
		"kind":      l.Kind,
	})
	api.WriteJSON(w, http.StatusOK, tok)
}

func (h *Handler) visibleLesson(w http.ResponseWriter, r *http.Request) (store.Lesson, bool) {
	l, err := h.store.GetLesson(r.Context(), chi.URLParam(r, "lesson_id"))
	if err != nil {
		h.writeError(w, r, err)
		return store.Lesson{}, false
	}
	if !l.Published && !auth.IsAdmin(r) {
		h.writeError(w, r, store.ErrNotFound)
		return store.Lesson{}, false
	}
	return l, true
}

type contentResponse struct {
	ID              string `json:"id"`
	DurationSeconds int    `json:"durationSeconds"`
}

// Content handles GET /internal/v1/content/{content_item_id} for the progress service.
func (h *Handler) Content(w http.ResponseWriter, r *http.Request) {
	l, err := h.store.GetLesson(r.Context(), chi.URLParam(r, "content_item_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, contentResponse{ID: l.ID, DurationSeconds: l.DurationSeconds})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	rid := httpserver.RequestIDFromContext(r.Context())
	switch {
	case errors.Is(err, store.ErrNotFound):
		api.NotFound(w, api.CodeNotFound, "Not found", rid)
	case errors.Is(err, store.ErrCourseNotFound):
		api.ValidationFailed(w, rid, map[string]string{"courseId": "course does not exist"})
	case errors.Is(err, store.ErrSlugTaken):
		api.WriteError(w, http.StatusConflict, "SLUG_TAKEN", "Slug already in use", rid, nil)
	default:
		httpserver.LoggerFor(r.Context(), h.log).Error("catalog request failed", zap.Error(err))
		api.Internal(w, rid)
	}
}
