package auth

import (
	"net/http"
	"strings"
)

// RequireAdmin gates admin-only routes. It must sit behind RequireUser,
// which is what puts the role into the context in the first place.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := RoleFromContext(r.Context())
		if !strings.EqualFold(strings.TrimSpace(role), "admin") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
