package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/course-platform/services/catalog/internal/store"
)

const maxRequestBodyBytes = 1 << 20 // 1 MiB

// Handlers bundles the store and logger behind the catalog HTTP surface.
type Handlers struct {
	Store store.CatalogStore
	Log   *zap.Logger
}

func New(s store.CatalogStore, log *zap.Logger) *Handlers {
	return &Handlers{Store: s, Log: log}
}

type CourseJSON struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Published   bool   `json:"published"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type ChapterJSON struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

type VideoJSON struct {
	ID               string `json:"id"`
	ChapterID        string `json:"chapter_id"`
	Title            string `json:"title"`
	Position         int    `json:"position"`
	ProviderVideoID  string `json:"provider_video_id"`
	RequiresWorkbook bool   `json:"requires_workbook"`
}

func courseJSON(c store.Course) CourseJSON {
	return CourseJSON{
		ID:          c.ID.String(),
		Title:       c.Title,
		Slug:        c.Slug,
		Description: c.Description,
		Published:   c.Published,
		CreatedAt:   c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func chapterJSON(ch store.Chapter) ChapterJSON {
	return ChapterJSON{
		ID:       ch.ID.String(),
		CourseID: ch.CourseID.String(),
		Title:    ch.Title,
		Position: ch.Position,
	}
}

func videoJSON(v store.Video) VideoJSON {
	return VideoJSON{
		ID:               v.ID.String(),
		ChapterID:        v.ChapterID.String(),
		Title:            v.Title,
		Position:         v.Position,
		ProviderVideoID:  v.ProviderVideoID,
		RequiresWorkbook: v.RequiresWorkbook,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(dst)
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}
