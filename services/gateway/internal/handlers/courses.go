package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/api"
	"github.com/example/course-platform/internal/platform/auth"
	"github.com/example/course-platform/services/gateway/internal/clients"
	"github.com/example/course-platform/services/gateway/internal/progressview"
	"github.com/example/course-platform/services/gateway/internal/session"
	"github.com/example/course-platform/services/gateway/internal/unlock"
)

type courseListItem struct {
	Course  clients.Course             `json:"course"`
	Summary progressview.CourseSummary `json:"summary"`
}

type courseListResponse struct {
	Items   []courseListItem     `json:"items"`
	Overall progressview.Overall `json:"overall"`
}

// ListCourses handles GET /v1/courses: every published course with the
// caller's progress summary and an account-wide rollup.
func (h *Handlers) ListCourses(w http.ResponseWriter, r *http.Request) {
	rid := requestID(r)
	userID, ok := requireUserID(w, r, rid)
	if !ok {
		return
	}

	courses, err := h.cachedCourses(r.Context())
	if err != nil {
		h.Log.Error("catalog list failed", zap.Error(err))
		api.BadGateway(w, "CATALOG_UNAVAILABLE", "catalog unavailable", rid)
		return
	}

	progress, err := h.userProgress(r.Context(), userID)
	if err != nil && !progress.Loaded() {
		h.Log.Error("progress load failed", zap.String("user_id", userID), zap.Error(err))
		api.BadGateway(w, "PROGRESS_UNAVAILABLE", "progress unavailable", rid)
		return
	}

	out := courseListResponse{Items: make([]courseListItem, 0, len(courses))}
	summaries := make([]progressview.CourseSummary, 0, len(courses))
	for _, c := range courses {
		videos, err := h.cachedCourseVideos(r.Context(), c.ID)
		if err != nil {
			h.Log.Error("catalog videos failed", zap.String("course_id", c.ID), zap.Error(err))
			api.BadGateway(w, "CATALOG_UNAVAILABLE", "catalog unavailable", rid)
			return
		}
		summary := progressview.Summarize(c.ID, videoRefs(videos), progress.Get)
		summaries = append(summaries, summary)
		out.Items = append(out.Items, courseListItem{Course: c, Summary: summary})
	}
	out.Overall = progressview.SummarizeAll(summaries)
	api.WriteJSON(w, http.StatusOK, out)
}

type videoView struct {
	clients.Video
	Unlocked   bool `json:"unlocked"`
	LastSecond int  `json:"last_second"`
	Percent    int  `json:"percent"`
	Completed  bool `json:"completed"`
}

type courseDetailResponse struct {
	Course   clients.Course             `json:"course"`
	Chapters []clients.Chapter          `json:"chapters"`
	Videos   []videoView                `json:"videos"`
	Summary  progressview.CourseSummary `json:"summary"`
}

// GetCourse handles GET /v1/courses/{slug}: the course page with per-video
// progress and unlock state. Unpublished courses are invisible to learners
// but admins can preview them.
func (h *Handlers) GetCourse(w http.ResponseWriter, r *http.Request) {
	rid := requestID(r)
	userID, ok := requireUserID(w, r, rid)
	if !ok {
		return
	}

	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	detail, err := h.cachedCourseDetail(r.Context(), slug)
	if err != nil {
		if clients.IsStatus(err, http.StatusNotFound) {
			api.NotFound(w, "COURSE_NOT_FOUND", "course not found", rid)
			return
		}
		h.Log.Error("catalog detail failed", zap.String("slug", slug), zap.Error(err))
		api.BadGateway(w, "CATALOG_UNAVAILABLE", "catalog unavailable", rid)
		return
	}
	if !detail.Course.Published {
		if role, _ := auth.RoleFromContext(r.Context()); !strings.EqualFold(role, "admin") {
			api.NotFound(w, "COURSE_NOT_FOUND", "course not found", rid)
			return
		}
	}

	progress, err := h.userProgress(r.Context(), userID)
	if err != nil && !progress.Loaded() {
		h.Log.Error("progress load failed", zap.String("user_id", userID), zap.Error(err))
		api.BadGateway(w, "PROGRESS_UNAVAILABLE", "progress unavailable", rid)
		return
	}

	api.WriteJSON(w, http.StatusOK, buildCourseDetail(detail, progress))
}

func buildCourseDetail(detail clients.CourseDetail, progress *session.ProgressCache) courseDetailResponse {
	ordered := make([]string, 0, len(detail.Videos))
	for _, v := range detail.Videos {
		ordered = append(ordered, v.ID)
	}
	completed := func(id string) bool {
		e, ok := progress.Get(id)
		return ok && e.Completed
	}
	unlocked := unlock.Map(ordered, completed)

	out := courseDetailResponse{
		Course:   detail.Course,
		Chapters: detail.Chapters,
		Videos:   make([]videoView, 0, len(detail.Videos)),
		Summary:  progressview.Summarize(detail.Course.ID, videoRefs(detail.Videos), progress.Get),
	}
	for _, v := range detail.Videos {
		view := videoView{Video: v, Unlocked: unlocked[v.ID]}
		if e, ok := progress.Get(v.ID); ok {
			view.LastSecond = e.LastSecond
			view.Percent = e.Percent
			view.Completed = e.Completed
		}
		out.Videos = append(out.Videos, view)
	}
	return out
}

type overviewResponse struct {
	Overall progressview.Overall         `json:"overall"`
	Courses []progressview.CourseSummary `json:"courses"`
}

// Overview handles GET /v1/overview: account-wide progress across every
// published course.
func (h *Handlers) Overview(w http.ResponseWriter, r *http.Request) {
	rid := requestID(r)
	userID, ok := requireUserID(w, r, rid)
	if !ok {
		return
	}

	courses, err := h.cachedCourses(r.Context())
	if err != nil {
		h.Log.Error("catalog list failed", zap.Error(err))
		api.BadGateway(w, "CATALOG_UNAVAILABLE", "catalog unavailable", rid)
		return
	}
	progress, err := h.userProgress(r.Context(), userID)
	if err != nil && !progress.Loaded() {
		api.BadGateway(w, "PROGRESS_UNAVAILABLE", "progress unavailable", rid)
		return
	}

	out := overviewResponse{Courses: make([]progressview.CourseSummary, 0, len(courses))}
	for _, c := range courses {
		videos, err := h.cachedCourseVideos(r.Context(), c.ID)
		if err != nil {
			api.BadGateway(w, "CATALOG_UNAVAILABLE", "catalog unavailable", rid)
			return
		}
		out.Courses = append(out.Courses, progressview.Summarize(c.ID, videoRefs(videos), progress.Get))
	}
	out.Overall = progressview.SummarizeAll(out.Courses)
	api.WriteJSON(w, http.StatusOK, out)
}

type continueItem struct {
	Video       clients.Video `json:"video"`
	CourseSlug  string        `json:"course_slug"`
	CourseTitle string        `json:"course_title"`
	LastSecond  int           `json:"last_second"`
	Percent     int           `json:"percent"`
	UpdatedAtMs int64         `json:"updated_at_ms"`
}

type continueResponse struct {
	Items      []continueItem `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// ContinueWatching handles GET /v1/continue-watching?limit=&cursor=: the
// user's in-progress videos enriched with catalog context. Videos that have
// since left the catalog are dropped from the page.
func (h *Handlers) ContinueWatching(w http.ResponseWriter, r *http.Request) {
	rid := requestID(r)
	userID, ok := requireUserID(w, r, rid)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, err := h.Progress.ContinueWatching(r.Context(), userID, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		h.Log.Error("continue-watching failed", zap.String("user_id", userID), zap.Error(err))
		api.BadGateway(w, "PROGRESS_UNAVAILABLE", "progress unavailable", rid)
		return
	}

	out := continueResponse{Items: make([]continueItem, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, it := range page.Items {
		vc, err := h.cachedVideoContext(r.Context(), it.VideoID)
		if err != nil {
			if clients.IsStatus(err, http.StatusNotFound) {
				continue
			}
			h.Log.Warn("video context failed", zap.String("video_id", it.VideoID), zap.Error(err))
			continue
		}
		out.Items = append(out.Items, continueItem{
			Video:       vc.Video,
			CourseSlug:  vc.Course.Slug,
			CourseTitle: vc.Course.Title,
			LastSecond:  it.LastSecond,
			Percent:     it.Percent,
			UpdatedAtMs: it.UpdatedAtMs,
		})
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func videoRefs(videos []clients.Video) []progressview.VideoRef {
	refs := make([]progressview.VideoRef, 0, len(videos))
	for _, v := range videos {
		refs = append(refs, progressview.VideoRef{ID: v.ID, Title: v.Title, RequiresWorkbook: v.RequiresWorkbook})
	}
	return refs
}

func (h *Handlers) cachedCourses(ctx context.Context) ([]clients.Course, error) {
	const key = "catalog:courses"
	if v, ok := h.Cache.Get(key); ok {
		return v.([]clients.Course), nil
	}
	courses, err := h.Catalog.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	h.Cache.Set(key, courses)
	return courses, nil
}

func (h *Handlers) cachedCourseVideos(ctx context.Context, courseID string) ([]clients.Video, error) {
	key := "catalog:videos:" + courseID
	if v, ok := h.Cache.Get(key); ok {
		return v.([]clients.Video), nil
	}
	videos, err := h.Catalog.ListCourseVideos(ctx, courseID)
	if err != nil {
		return nil, err
	}
	h.Cache.Set(key, videos)
	return videos, nil
}

func (h *Handlers) cachedCourseDetail(ctx context.Context, slug string) (clients.CourseDetail, error) {
	key := "catalog:course:" + slug
	if v, ok := h.Cache.Get(key); ok {
		return v.(clients.CourseDetail), nil
	}
	detail, err := h.Catalog.GetCourseBySlug(ctx, slug)
	if err != nil {
		return clients.CourseDetail{}, err
	}
	h.Cache.Set(key, detail)
	return detail, nil
}

func (h *Handlers) cachedVideoContext(ctx context.Context, videoID string) (clients.VideoContext, error) {
	key := "catalog:videoctx:" + videoID
	if v, ok := h.Cache.Get(key); ok {
		return v.(clients.VideoContext), nil
	}
	vc, err := h.Catalog.GetVideo(ctx, videoID)
	if err != nil {
		return clients.VideoContext{}, err
	}
	h.Cache.Set(key, vc)
	return vc, nil
}
