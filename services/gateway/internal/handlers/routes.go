package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/course-platform/internal/platform/auth"
)

// Routes mounts the public surface. Auth endpoints are open; everything else
// requires a bearer token. Extra middleware (rate limiting) applies to the
// whole surface but not the health endpoints the router already carries.
func (h *Handlers) Routes(r chi.Router, verifier auth.JWTVerifier, middleware ...func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		for _, mw := range middleware {
			r.Use(mw)
		}

		r.Post("/v1/auth/register", h.forwardAuth("/v1/auth/register"))
		r.Post("/v1/auth/login", h.forwardAuth("/v1/auth/login"))
		r.Post("/v1/auth/refresh", h.forwardAuth("/v1/auth/refresh"))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser(verifier))

			r.Post("/v1/auth/logout", h.Logout)
			r.Get("/v1/me", h.forwardAuth("/v1/auth/me"))

			r.Get("/v1/courses", h.ListCourses)
			r.Get("/v1/courses/{slug}", h.GetCourse)
			r.Get("/v1/overview", h.Overview)
			r.Get("/v1/continue-watching", h.ContinueWatching)

			r.Get("/v1/watch/{videoID}", h.Watch)
			r.Post("/v1/watch/{videoID}/session", h.OpenSession)
			r.Post("/v1/watch/{videoID}/events", h.PlayerEvent)

			r.Post("/v1/videos/{videoID}/complete", h.MarkCompleted)
			r.Delete("/v1/videos/{videoID}/complete", h.UndoCompleted)
			r.Delete("/v1/videos/{videoID}/progress", h.ResetProgress)
		})
	})
}
