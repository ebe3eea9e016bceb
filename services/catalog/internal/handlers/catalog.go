package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/api"
	"github.com/example/course-platform/internal/platform/httpserver"
	"github.com/example/course-platform/services/catalog/internal/store"
)

// ListCourses handles GET /v1/courses: published courses only.
func (h *Handlers) ListCourses(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	courses, err := h.Store.ListCourses(r.Context(), true)
	if err != nil {
		h.Log.Error("list courses failed", zap.Error(err))
		api.Internal(w, rid)
		return
	}
	out := struct {
		Items []CourseJSON `json:"items"`
	}{Items: make([]CourseJSON, 0, len(courses))}
	for _, c := range courses {
		out.Items = append(out.Items, courseJSON(c))
	}
	api.WriteJSON(w, http.StatusOK, out)
}

type courseDetailResponse struct {
	Course   CourseJSON    `json:"course"`
	Chapters []ChapterJSON `json:"chapters"`
	Videos   []VideoJSON   `json:"videos"`
}

// GetCourseBySlug handles GET /v1/courses/by-slug/{slug}: course with its chapters and
// videos in course order. Unpublished courses stay reachable; the gateway
// decides who may see them.
func (h *Handlers) GetCourseBySlug(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	if slug == "" {
		api.BadRequest(w, "INVALID_SLUG", "slug is required", rid, nil)
		return
	}

	c, err := h.Store.GetCourseBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.NotFound(w, "COURSE_NOT_FOUND", "course not found", rid)
			return
		}
		h.Log.Error("get course failed", zap.String("slug", slug), zap.Error(err))
		api.Internal(w, rid)
		return
	}

	chapters, err := h.Store.ListChapters(r.Context(), c.ID)
	if err != nil {
		h.Log.Error("list chapters failed", zap.String("course_id", c.ID.String()), zap.Error(err))
		api.Internal(w, rid)
		return
	}
	videos, err := h.Store.ListCourseVideos(r.Context(), c.ID)
	if err != nil {
		h.Log.Error("list videos failed", zap.String("course_id", c.ID.String()), zap.Error(err))
		api.Internal(w, rid)
		return
	}

	out := courseDetailResponse{
		Course:   courseJSON(c),
		Chapters: make([]ChapterJSON, 0, len(chapters)),
		Videos:   make([]VideoJSON, 0, len(videos)),
	}
	for _, ch := range chapters {
		out.Chapters = append(out.Chapters, chapterJSON(ch))
	}
	for _, v := range videos {
		out.Videos = append(out.Videos, videoJSON(v))
	}
	api.WriteJSON(w, http.StatusOK, out)
}

// ListCourseVideos handles GET /v1/courses/{courseID}/videos: the flat ordered
// video list the gateway aggregates progress against.
func (h *Handlers) ListCourseVideos(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	courseID, err := pathUUID(r, "courseID")
	if err != nil {
		api.BadRequest(w, "INVALID_ID", "invalid course id", rid, nil)
		return
	}

	videos, err := h.Store.ListCourseVideos(r.Context(), courseID)
	if err != nil {
		h.Log.Error("list videos failed", zap.String("course_id", courseID.String()), zap.Error(err))
		api.Internal(w, rid)
		return
	}
	out := struct {
		Items []VideoJSON `json:"items"`
	}{Items: make([]VideoJSON, 0, len(videos))}
	for _, v := range videos {
		out.Items = append(out.Items, videoJSON(v))
	}
	api.WriteJSON(w, http.StatusOK, out)
}

type videoContextResponse struct {
	Video   VideoJSON   `json:"video"`
	Chapter ChapterJSON `json:"chapter"`
	Course  CourseJSON  `json:"course"`
}

// GetVideo handles GET /v1/videos/{videoID}: a video with its chapter and
// course context for the watch page.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	videoID, err := pathUUID(r, "videoID")
	if err != nil {
		api.BadRequest(w, "INVALID_ID", "invalid video id", rid, nil)
		return
	}

	vc, err := h.Store.GetVideoContext(r.Context(), videoID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.NotFound(w, "VIDEO_NOT_FOUND", "video not found", rid)
			return
		}
		h.Log.Error("get video failed", zap.String("video_id", videoID.String()), zap.Error(err))
		api.Internal(w, rid)
		return
	}
	api.WriteJSON(w, http.StatusOK, videoContextResponse{
		Video:   videoJSON(vc.Video),
		Chapter: chapterJSON(vc.Chapter),
		Course:  courseJSON(vc.Course),
	})
}

// Routes mounts every catalog endpoint on r.
func (h *Handlers) Routes(r chi.Router) {
	r.Get("/v1/courses", h.ListCourses)
	r.Get("/v1/courses/by-slug/{slug}", h.GetCourseBySlug)
	r.Get("/v1/courses/{courseID}/videos", h.ListCourseVideos)
	r.Get("/v1/videos/{videoID}", h.GetVideo)

	r.Route("/v1/admin", func(r chi.Router) {
		r.Get("/courses", h.AdminListCourses)
		r.Post("/courses", h.CreateCourse)
		r.Put("/courses/{courseID}", h.UpdateCourse)
		r.Put("/courses/{courseID}/published", h.SetCoursePublished)
		r.Delete("/courses/{courseID}", h.DeleteCourse)

		r.Post("/courses/{courseID}/chapters", h.CreateChapter)
		r.Put("/chapters/{chapterID}", h.UpdateChapter)
		r.Delete("/chapters/{chapterID}", h.DeleteChapter)
		r.Put("/chapters/positions", h.ReorderChapters)

		r.Post("/chapters/{chapterID}/videos", h.CreateVideo)
		r.Put("/videos/{videoID}", h.UpdateVideo)
		r.Delete("/videos/{videoID}", h.DeleteVideo)
		r.Put("/videos/positions", h.ReorderVideos)
	})
}
