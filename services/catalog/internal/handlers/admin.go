package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/api"
	"github.com/example/course-platform/internal/platform/httpserver"
	"github.com/example/course-platform/services/catalog/internal/store"
)

// ── Courses ────────────────────────────────────────────────────────────────

type courseRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (h *Handlers) CreateCourse(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	var req courseRequest
	if err := decodeBody(w, r, &req); err != nil {
		api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || store.Slugify(req.Title) == "" {
		api.BadRequest(w, "INVALID_TITLE", "title is required", rid, nil)
		return
	}

	c, err := h.Store.CreateCourse(r.Context(), req.Title, req.Description)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			api.Conflict(w, "SLUG_TAKEN", "a course with this title already exists", rid, nil)
			return
		}
		h.Log.Error("create course failed", zap.Error(err))
		api.Internal(w, rid)
		return
	}
	api.WriteJSON(w, http.StatusCreated, courseJSON(c))
}

func (h *Handlers) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	id, err := pathUUID(r, "courseID")
	if err != nil {
		api.BadRequest(w, "INVALID_ID", "invalid course id", rid, nil)
		return
	}
	var req courseRequest
	if err := decodeBody(w, r, &req); err != nil {
		api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || store.Slugify(req.Title) == "" {
		api.BadRequest(w, "INVALID_TITLE", "title is required", rid, nil)
		return
	}

	c, err := h.Store.UpdateCourse(r.Context(), id, req.Title, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			api.NotFound(w, "COURSE_NOT_FOUND", "course not found", rid)
		case errors.Is(err, store.ErrConflict):
			api.Conflict(w, "SLUG_TAKEN", "a course with this title already exists", rid, nil)
		default:
			h.Log.Error("update course failed", zap.String("course_id", id.String()), zap.Error(err))
			api.Internal(w, rid)
		}
		return
	}
	api.WriteJSON(w, http.StatusOK, courseJSON(c))
}

func (h *Handlers) SetCoursePublished(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	id, err := pathUUID(r, "courseID")
	if err != nil {
		api.BadRequest(w, "INVALID_ID", "invalid course id", rid, nil)
		return
	}
	var req struct {
		Published bool `json:"published"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
		return
	}

	if err := h.Store.SetCoursePublished(r.Context(), id, req.Published); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.NotFound(w, "COURSE_NOT_FOUND", "course not found", rid)
			return
		}
		h.Log.Error("publish toggle failed", zap.String("course_id", id.String()), zap.Error(err))
		api.Internal(w, rid)
		return
	}
	api.NoContent(w)
}

func (h *Handlers) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	id, err := pathUUID(r, "courseID")
	if err != nil {
		api.BadRequest(w, "INVALID_ID", "invalid course id", rid, nil)
		return
	}
	if err := h.Store.SoftDeleteCourse(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.NotFound(w, "COURSE_NOT_FOUND", "course not found", rid)
			return
		}
		h.Log.Error("delete course failed", zap.String("course_id", id.String()), zap.Error(err))
		api.Internal(w, rid)
		return
	}
	api.NoContent(w)
}

func (h *Handlers) AdminListCourses(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	courses, err := h.Store.ListCourses(r.Context(), false)
	if err != nil {
		h.Log.Error("admin list courses failed", zap.Error(err))
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

// ── Chapters ───────────────────────────────────────────────────────────────

func (h *Handlers) CreateChapter(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	courseID, err := pathUUID(r, "courseID")
	if err != nil {
		api.BadRequest(w, "INVALID_ID", "invalid course id", rid, nil)
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		api.BadRequest(w, "INVALID_TITLE", "title is required", rid, nil)
		return
	}

	ch, err := h.Store.CreateChapter(r.Context(), courseID, req.Title)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.NotFound(w, "COURSE_NOT_FOUND", "course not found", rid)
			return
		}
		h.Log.Error("create chapter failed", zap.String("course_id", courseID.String()), zap.Error(err))
		api.Internal(w, rid)
		return
	}
	api.WriteJSON(w, http.StatusCreated, chapterJSON(ch))
}

func (h *Handlers) UpdateChapter(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	id, err := pathUUID(r, "chapterID")
	if err != nil {
		api.BadRequest(w, "INVALID_ID", "invalid chapter id", rid, nil)
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		api.BadRequest(w, "INVALID_TITLE", "title is required", rid, nil)
		return
	}

	ch, err := h.Store.UpdateChapter(r.Context(), id, req.Title)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.NotFound(w, "CHAPTER_NOT_FOUND", "chapter not found", rid)
			return
		}
		h.Log.Error("update chapter failed", zap.String("chapter_id", id.String()), zap.Error(err))
		api.Internal(w, rid)
		return
	}
	api.WriteJSON(w, http.StatusOK, chapterJSON(ch))
}

func (h *Handlers) DeleteChapter(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	id, err := pathUUID(r, "chapterID")
	if err != nil {
		api.BadRequest(w, "INVALID_ID", "invalid chapter id", rid, nil)
		return
	}
	if err := h.Store.SoftDeleteChapter(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.NotFound(w, "CHAPTER_NOT_FOUND", "chapter not found", rid)
			return
		}
		h.Log.Error("delete chapter failed", zap.String("chapter_id", id.String()), zap.Error(err))
		api.Internal(w, rid)
		return
	}
	api.NoContent(w)
}

func (h *Handlers) ReorderChapters(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	var req struct {
		Items []struct {
			ID       string `json:"id"`
			Position int    `json:"position"`
		} `json:"items"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
		return
	}
	if len(req.Items) == 0 {
		api.BadRequest(w, "EMPTY_REORDER", "items is required", rid, nil)
		return
	}

	updates := make([]store.ChapterPosition, 0, len(req.Items))
	for _, it := range req.Items {
		id, err := uuid.Parse(it.ID)
		if err != nil {
			api.BadRequest(w, "INVALID_ID", "invalid chapter id", rid, map[string]any{"id": it.ID})
			return
		}
		updates = append(updates, store.ChapterPosition{ID: id, Position: it.Position})
	}

	if err := h.Store.UpdateChapterPositions(r.Context(), updates); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.NotFound(w, "CHAPTER_NOT_FOUND", "chapter not found", rid)
			return
		}
		h.Log.Error("reorder chapters failed", zap.Error(err))
		api.Internal(w, rid)
		return
	}
	api.NoContent(w)
}

// ── Videos ─────────────────────────────────────────────────────────────────

func (h *Handlers) CreateVideo(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	chapterID, err := pathUUID(r, "chapterID")
	if err != nil {
		api.BadRequest(w, "INVALID_ID", "invalid chapter id", rid, nil)
		return
	}
	var req struct {
		Title            string `json:"title"`
		ProviderVideoID  string `json:"provider_video_id"`
		RequiresWorkbook bool   `json:"requires_workbook"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		api.BadRequest(w, "INVALID_TITLE", "title is required", rid, nil)
		return
	}

	v, err := h.Store.CreateVideo(r.Context(), chapterID, req.Title, strings.TrimSpace(req.ProviderVideoID), req.RequiresWorkbook)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.NotFound(w, "CHAPTER_NOT_FOUND", "chapter not found", rid)
			return
		}
		h.Log.Error("create video failed", zap.String("chapter_id", chapterID.String()), zap.Error(err))
		api.Internal(w, rid)
		return
	}
	api.WriteJSON(w, http.StatusCreated, videoJSON(v))
}

func (h *Handlers) UpdateVideo(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	id, err := pathUUID(r, "videoID")
	if err != nil {
		api.BadRequest(w, "INVALID_ID", "invalid video id", rid, nil)
		return
	}
	var req struct {
		ChapterID        string `json:"chapter_id"`
		Title            string `json:"title"`
		RequiresWorkbook bool   `json:"requires_workbook"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
		return
	}
	chapterID, err := uuid.Parse(strings.TrimSpace(req.ChapterID))
	if err != nil {
		api.BadRequest(w, "INVALID_ID", "invalid chapter_id", rid, nil)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		api.BadRequest(w, "INVALID_TITLE", "title is required", rid, nil)
		return
	}

	v, err := h.Store.UpdateVideo(r.Context(), id, chapterID, req.Title, req.RequiresWorkbook)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.NotFound(w, "VIDEO_NOT_FOUND", "video not found", rid)
			return
		}
		h.Log.Error("update video failed", zap.String("video_id", id.String()), zap.Error(err))
		api.Internal(w, rid)
		return
	}
	api.WriteJSON(w, http.StatusOK, videoJSON(v))
}

func (h *Handlers) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	id, err := pathUUID(r, "videoID")
	if err != nil {
		api.BadRequest(w, "INVALID_ID", "invalid video id", rid, nil)
		return
	}
	if err := h.Store.SoftDeleteVideo(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.NotFound(w, "VIDEO_NOT_FOUND", "video not found", rid)
			return
		}
		h.Log.Error("delete video failed", zap.String("video_id", id.String()), zap.Error(err))
		api.Internal(w, rid)
		return
	}
	api.NoContent(w)
}

func (h *Handlers) ReorderVideos(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	var req struct {
		Items []struct {
			ID        string `json:"id"`
			ChapterID string `json:"chapter_id"`
			Position  int    `json:"position"`
		} `json:"items"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
		return
	}
	if len(req.Items) == 0 {
		api.BadRequest(w, "EMPTY_REORDER", "items is required", rid, nil)
		return
	}

	updates := make([]store.VideoPosition, 0, len(req.Items))
	for _, it := range req.Items {
		id, err := uuid.Parse(it.ID)
		if err != nil {
			api.BadRequest(w, "INVALID_ID", "invalid video id", rid, map[string]any{"id": it.ID})
			return
		}
		chapterID, err := uuid.Parse(it.ChapterID)
		if err != nil {
			api.BadRequest(w, "INVALID_ID", "invalid chapter_id", rid, map[string]any{"id": it.ChapterID})
			return
		}
		updates = append(updates, store.VideoPosition{ID: id, ChapterID: chapterID, Position: it.Position})
	}

	if err := h.Store.UpdateVideoPositions(r.Context(), updates); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.NotFound(w, "VIDEO_NOT_FOUND", "video not found", rid)
			return
		}
		h.Log.Error("reorder videos failed", zap.Error(err))
		api.Internal(w, rid)
		return
	}
	api.NoContent(w)
}
