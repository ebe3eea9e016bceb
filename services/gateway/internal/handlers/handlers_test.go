package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/auth"
	"github.com/example/course-platform/internal/platform/signing"
	"github.com/example/course-platform/services/gateway/internal/clients"
	"github.com/example/course-platform/services/gateway/internal/session"
)

type fakeCatalog struct {
	courses []clients.Course
	details map[string]clients.CourseDetail
	videos  map[string][]clients.Video
	ctxs    map[string]clients.VideoContext
}

func (f *fakeCatalog) ListCourses(context.Context) ([]clients.Course, error) {
	out := make([]clients.Course, 0, len(f.courses))
	for _, c := range f.courses {
		if c.Published {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCatalog) GetCourseBySlug(_ context.Context, slug string) (clients.CourseDetail, error) {
	d, ok := f.details[slug]
	if !ok {
		return clients.CourseDetail{}, &clients.APIError{Status: http.StatusNotFound, Code: "COURSE_NOT_FOUND"}
	}
	return d, nil
}

func (f *fakeCatalog) ListCourseVideos(_ context.Context, courseID string) ([]clients.Video, error) {
	return f.videos[courseID], nil
}

func (f *fakeCatalog) GetVideo(_ context.Context, videoID string) (clients.VideoContext, error) {
	vc, ok := f.ctxs[videoID]
	if !ok {
		return clients.VideoContext{}, &clients.APIError{Status: http.StatusNotFound, Code: "VIDEO_NOT_FOUND"}
	}
	return vc, nil
}

type fakeProgress struct {
	mu      sync.Mutex
	items   map[string]map[string]clients.ProgressItem // user -> video -> item
	clock   int64
	upserts []clients.UpsertParams
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{items: make(map[string]map[string]clients.ProgressItem), clock: 1000}
}

func (f *fakeProgress) seed(userID string, item clients.ProgressItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.items[userID] == nil {
		f.items[userID] = make(map[string]clients.ProgressItem)
	}
	f.items[userID][item.VideoID] = item
}

func (f *fakeProgress) Upsert(_ context.Context, p clients.UpsertParams) (clients.ProgressItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, p)
	f.clock++
	item := clients.ProgressItem{
		VideoID:     p.VideoID,
		LastSecond:  p.LastSecond,
		Percent:     p.Percent,
		UpdatedAtMs: f.clock,
	}
	if p.Completed {
		ts := time.Now().UTC().Format(time.RFC3339)
		item.CompletedAt = &ts
	}
	if f.items[p.UserID] == nil {
		f.items[p.UserID] = make(map[string]clients.ProgressItem)
	}
	f.items[p.UserID][p.VideoID] = item
	return item, nil
}

func (f *fakeProgress) ListByUser(_ context.Context, userID string) ([]clients.ProgressItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]clients.ProgressItem, 0, len(f.items[userID]))
	for _, it := range f.items[userID] {
		out = append(out, it)
	}
	return out, nil
}

func (f *fakeProgress) ContinueWatching(_ context.Context, userID string, _ int, _ string) (clients.ContinuePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var page clients.ContinuePage
	for _, it := range f.items[userID] {
		if it.CompletedAt == nil && it.LastSecond > 0 {
			page.Items = append(page.Items, it)
		}
	}
	return page, nil
}

type fakeAuth struct{ forwarded []string }

func (f *fakeAuth) Forward(w http.ResponseWriter, _ *http.Request, path string) error {
	f.forwarded = append(f.forwarded, path)
	w.WriteHeader(http.StatusOK)
	return nil
}

type countingCatalog struct {
	*fakeCatalog
	listCalls int
}

func (c *countingCatalog) ListCourses(ctx context.Context) ([]clients.Course, error) {
	c.listCalls++
	return c.fakeCatalog.ListCourses(ctx)
}

func clientsProgressItem(videoID string, lastSecond, percent int, ms int64) clients.ProgressItem {
	return clients.ProgressItem{VideoID: videoID, LastSecond: lastSecond, Percent: percent, UpdatedAtMs: ms}
}

func completedItem(videoID string, ms int64) clients.ProgressItem {
	ts := time.Now().UTC().Format(time.RFC3339)
	return clients.ProgressItem{VideoID: videoID, LastSecond: 600, Percent: 100, CompletedAt: &ts, UpdatedAtMs: ms}
}

// testWorld builds one published course (three videos, the second needing a
// workbook) plus an unpublished course.
func testWorld() *fakeCatalog {
	course := clients.Course{ID: "c1", Title: "Go Basics", Slug: "go-basics", Published: true}
	hidden := clients.Course{ID: "c2", Title: "Draft", Slug: "draft", Published: false}
	chapter := clients.Chapter{ID: "ch1", CourseID: "c1", Title: "Start", Position: 1}
	videos := []clients.Video{
		{ID: "v1", ChapterID: "ch1", Title: "Intro", Position: 1, ProviderVideoID: "guid-1"},
		{ID: "v2", ChapterID: "ch1", Title: "Setup", Position: 2, ProviderVideoID: "guid-2", RequiresWorkbook: true},
		{ID: "v3", ChapterID: "ch1", Title: "Deep Dive", Position: 3, ProviderVideoID: "guid-3"},
	}

	ctxs := make(map[string]clients.VideoContext, len(videos))
	for _, v := range videos {
		ctxs[v.ID] = clients.VideoContext{Video: v, Chapter: chapter, Course: course}
	}
	return &fakeCatalog{
		courses: []clients.Course{course, hidden},
		details: map[string]clients.CourseDetail{
			"go-basics": {Course: course, Chapters: []clients.Chapter{chapter}, Videos: videos},
			"draft":     {Course: hidden, Chapters: nil, Videos: nil},
		},
		videos: map[string][]clients.Video{"c1": videos},
		ctxs:   ctxs,
	}
}

func newTestHandlers(catalog *fakeCatalog, progress *fakeProgress) *Handlers {
	return &Handlers{
		Catalog:     catalog,
		Progress:    progress,
		Auth:        &fakeAuth{},
		Sessions:    session.NewSessions(time.Hour),
		Cache:       NewTTLCache(time.Minute),
		Signer:      signing.New("test-secret"),
		Log:         zap.NewNop(),
		PlayBaseURL: "https://api.learnhub.example/v1/play",
	}
}

// serveAs routes the request through the handler surface with userID already
// authenticated.
func serveAs(h *Handlers, userID, method, path, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithUserID(req.Context(), userID)))
		})
	})
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

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}
