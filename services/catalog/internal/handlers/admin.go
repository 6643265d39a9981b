package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/membership-portal/internal/platform/api"
	"github.com/example/membership-portal/internal/platform/httpserver"
	"github.com/example/membership-portal/internal/platform/validate"
	"github.com/example/membership-portal/services/catalog/internal/store"
)

const maxRequestBodyBytes = 1 << 20 // 1 MiB

type courseRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Slug        string `json:"slug" validate:"required,max=120"`
	Description string `json:"description" validate:"max=5000"`
	Published   bool   `json:"published"`
	Position    int    `json:"position" validate:"gte=0"`
}

type lessonRequest struct {
	CourseID        string `json:"courseId" validate:"required,max=128"`
	Kind            string `json:"kind" validate:"required,oneof=lesson podcast group_call"`
	Title           string `json:"title" validate:"required,max=200"`
	Description     string `json:"description" validate:"max=5000"`
	MuxPlaybackID   string `json:"muxPlaybackId" validate:"max=128"`
	DurationSeconds int    `json:"durationSeconds" validate:"gte=0"`
	Position        int    `json:"position" validate:"gte=0"`
}

// adminLesson includes the playback ID, which the member-facing JSON hides.
type adminLesson struct {
	store.Lesson
	MuxPlaybackID string `json:"muxPlaybackId"`
}

// decodeJSON reads up to maxRequestBodyBytes from r.Body, decodes JSON into dst
// and validates it. On failure it writes a 400 response and returns false.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, dst *T) bool {
	rid := httpserver.RequestIDFromContext(r.Context())
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(dst); err != nil {
		api.BadRequest(w, api.CodeInvalidJSON, "Invalid JSON", rid, nil)
		return false
	}
	if errs := validate.Struct(dst); errs != nil {
		api.ValidationFailed(w, rid, errs)
		return false
	}
	return true
}

// PutCourse handles PUT /v1/admin/courses/{course_id}.
func (h *Handler) PutCourse(w http.ResponseWriter, r *http.Request) {
	var req courseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.store.UpsertCourse(r.Context(), store.Course{
		ID:          chi.URLParam(r, "course_id"),
		Title:       strings.TrimSpace(req.Title),
		Slug:        strings.ToLower(strings.TrimSpace(req.Slug)),
		Description: req.Description,
		Published:   req.Published,
		Position:    req.Position,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, c)
}

// PutLesson handles PUT /v1/admin/lessons/{lesson_id}.
func (h *Handler) PutLesson(w http.ResponseWriter, r *http.Request) {
	var req lessonRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	l, err := h.store.UpsertLesson(r.Context(), store.Lesson{
		ID:              chi.URLParam(r, "lesson_id"),
		CourseID:        strings.TrimSpace(req.CourseID),
		Kind:            req.Kind,
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		MuxPlaybackID:   strings.TrimSpace(req.MuxPlaybackID),
		DurationSeconds: req.DurationSeconds,
		Position:        req.Position,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, adminLesson{Lesson: l, MuxPlaybackID: l.MuxPlaybackID})
}

// DeleteLesson handles DELETE /v1/admin/lessons/{lesson_id}.
func (h *Handler) DeleteLesson(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteLesson(r.Context(), chi.URLParam(r, "lesson_id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
