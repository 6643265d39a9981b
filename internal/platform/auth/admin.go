package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/example/membership-portal/internal/platform/api"
)

const RoleAdmin = "admin"

// IsAdmin reports whether RequireUser injected the admin role.
func IsAdmin(r *http.Request) bool {
	role, _ := RoleFromContext(r.Context())
	return strings.EqualFold(strings.TrimSpace(role), RoleAdmin)
}

// RequireAdmin allows request only if RequireUser already injected role=admin into context.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r) {
			api.Forbidden(w, api.CodeForbidden, "Admin role required", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// InternalTokenHeader carries the shared secret for service-to-service calls.
const InternalTokenHeader = "X-Internal-Token"

// RequireInternal guards routes only other portal services may call.
func RequireInternal(token string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(InternalTokenHeader)
			if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				api.Forbidden(w, api.CodeForbidden, "Internal route", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
