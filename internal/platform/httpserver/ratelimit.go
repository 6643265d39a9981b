package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/example/membership-portal/internal/platform/api"
	"github.com/example/membership-portal/internal/platform/auth"
)

// RateLimit caps requests per caller within window. Authenticated callers are
// keyed by user ID so several tabs behind one NAT don't starve each other;
// anonymous requests fall back to the client IP.
// Must be mounted after auth.RequireUser.
func RateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(userOrIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			api.RateLimited(w, RequestIDFromContext(r.Context()))
		}),
	)
}

func userOrIP(r *http.Request) (string, error) {
	if uid, ok := auth.UserIDFromContext(r.Context()); ok {
		return "user:" + uid, nil
	}
	return httprate.KeyByIP(r)
}
