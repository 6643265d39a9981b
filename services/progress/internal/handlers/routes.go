package handlers

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/membership-portal/internal/platform/auth"
	"github.com/example/membership-portal/internal/platform/httpserver"
)

type RouteOptions struct {
	Verifier auth.JWTVerifier
	// SessionCookie lets beacons authenticate without an Authorization header.
	SessionCookie string
	// SyncRequests per SyncWindow per member on POST /progress/sync.
	SyncRequests int
	SyncWindow   time.Duration
}

// Mount registers the progress routes on r.
func (h *Handler) Mount(r chi.Router, opts RouteOptions) {
	if opts.SyncRequests <= 0 {
		opts.SyncRequests = 60
	}
	if opts.SyncWindow <= 0 {
		opts.SyncWindow = time.Minute
	}
	r.Route("/progress", func(r chi.Router) {
		r.Use(auth.RequireUser(opts.Verifier, auth.Options{SessionCookie: opts.SessionCookie}))
		r.With(httpserver.RateLimit(opts.SyncRequests, opts.SyncWindow)).Post("/sync", h.PostSync)
		r.Get("/sync", h.GetSync)
		r.Get("/continue", h.Continue)
	})
}
