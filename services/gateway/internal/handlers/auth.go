package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/api"
	"github.com/example/course-platform/internal/platform/auth"
)

// forwardAuth proxies one request to the auth service; token semantics stay
// in one place.
func (h *Handlers) forwardAuth(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.Auth.Forward(w, r, path); err != nil {
			h.Log.Error("auth proxy failed", zap.String("path", path), zap.Error(err))
			api.BadGateway(w, "AUTH_UNAVAILABLE", "auth unavailable", requestID(r))
		}
	}
}

// Logout forwards to the auth service and drops the user's gateway session so
// a fresh login starts from server state.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if uid, ok := auth.UserIDFromContext(r.Context()); ok {
		h.Sessions.Drop(uid)
	}
	if err := h.Auth.Forward(w, r, "/v1/auth/logout"); err != nil {
		h.Log.Error("auth proxy failed", zap.String("path", "/v1/auth/logout"), zap.Error(err))
		api.BadGateway(w, "AUTH_UNAVAILABLE", "auth unavailable", requestID(r))
	}
}
