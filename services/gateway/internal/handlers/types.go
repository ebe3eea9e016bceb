// Package handlers is the public HTTP surface of the platform. It composes
// the catalog, progress and vod services into the views the web player
// renders, and owns per-user playback sessions.
package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/analytics"
	"github.com/example/course-platform/internal/platform/api"
	"github.com/example/course-platform/internal/platform/auth"
	"github.com/example/course-platform/internal/platform/httpserver"
	"github.com/example/course-platform/internal/platform/signing"
	"github.com/example/course-platform/services/gateway/internal/clients"
	"github.com/example/course-platform/services/gateway/internal/playback"
	"github.com/example/course-platform/services/gateway/internal/session"
)

// signedURLTTL bounds how long an issued playback URL stays valid.
const signedURLTTL = 15 * time.Minute

// CatalogAPI is the slice of the catalog client the handlers use.
type CatalogAPI interface {
	ListCourses(ctx context.Context) ([]clients.Course, error)
	GetCourseBySlug(ctx context.Context, slug string) (clients.CourseDetail, error)
	ListCourseVideos(ctx context.Context, courseID string) ([]clients.Video, error)
	GetVideo(ctx context.Context, videoID string) (clients.VideoContext, error)
}

// ProgressAPI is the slice of the progress client the handlers use.
type ProgressAPI interface {
	Upsert(ctx context.Context, p clients.UpsertParams) (clients.ProgressItem, error)
	ListByUser(ctx context.Context, userID string) ([]clients.ProgressItem, error)
	ContinueWatching(ctx context.Context, userID string, limit int, cursor string) (clients.ContinuePage, error)
}

// AuthProxy forwards a request to the auth service.
type AuthProxy interface {
	Forward(w http.ResponseWriter, r *http.Request, path string) error
}

type Handlers struct {
	Catalog   CatalogAPI
	Progress  ProgressAPI
	Auth      AuthProxy
	Sessions  *session.Sessions
	Cache     Cache
	Signer    *signing.Signer
	Events    *EventPublisher
	Analytics *analytics.Publisher
	Log       *zap.Logger

	// PlayBaseURL is the public vod play endpoint signed URLs point at.
	PlayBaseURL string

	mu        sync.Mutex
	reporters map[string]*playback.Reporter
}

// reporterFor returns the viewing session for (userID, videoID), creating it
// from stored progress when absent.
func (h *Handlers) reporterFor(userID, videoID string, durationSeconds int, e session.Entry) *playback.Reporter {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.reporters == nil {
		h.reporters = make(map[string]*playback.Reporter)
	}
	key := userID + "|" + videoID
	if r, ok := h.reporters[key]; ok {
		return r
	}
	r := playback.NewReporter(videoID, durationSeconds, e.LastSecond, e.Completed)
	h.reporters[key] = r
	return r
}

func (h *Handlers) dropReporter(userID, videoID string) {
	h.mu.Lock()
	delete(h.reporters, userID+"|"+videoID)
	h.mu.Unlock()
}

// requireUserID pulls the authenticated user out of the context; the auth
// middleware guarantees it on protected routes.
func requireUserID(w http.ResponseWriter, r *http.Request, rid string) (string, bool) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok || uid == "" {
		api.Unauthorized(w, "UNAUTHENTICATED", "authentication required", rid)
		return "", false
	}
	return uid, true
}

// userProgress returns the user's session cache, loading it from the progress
// service on first touch. A load failure with an already-warm cache degrades
// to the cached view.
func (h *Handlers) userProgress(ctx context.Context, userID string) (*session.ProgressCache, error) {
	cache := h.Sessions.For(userID)
	if cache.Loaded() {
		return cache, nil
	}
	items, err := h.Progress.ListByUser(ctx, userID)
	if err != nil {
		return cache, err
	}
	entries := make([]session.Entry, 0, len(items))
	for _, it := range items {
		entries = append(entries, it.Entry())
	}
	cache.ApplySnapshot(entries)
	return cache, nil
}

func requestID(r *http.Request) string {
	return httpserver.RequestIDFromContext(r.Context())
}
