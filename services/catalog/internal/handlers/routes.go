package handlers

import (
	"github.com/go-chi/chi/v5"

	"github.com/example/membership-portal/internal/platform/auth"
)

// Mount registers member, admin and internal routes on r.
func (h *Handler) Mount(r chi.Router, verifier auth.JWTVerifier, internalToken string) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Get("/v1/courses", h.ListCourses)
		r.Get("/v1/courses/{course_id}/lessons", h.ListLessons)
		r.Get("/v1/lessons/{lesson_id}", h.GetLesson)
		r.Get("/v1/lessons/{lesson_id}/playback", h.Playback)

		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Put("/courses/{course_id}", h.PutCourse)
			r.Put("/lessons/{lesson_id}", h.PutLesson)
			r.Delete("/lessons/{lesson_id}", h.DeleteLesson)
		})
	})

	r.With(auth.RequireInternal(internalToken)).Get("/internal/v1/content/{content_item_id}", h.Content)
}
