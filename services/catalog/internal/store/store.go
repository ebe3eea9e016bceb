package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Course is a published or draft collection of chapters.
type Course struct {
	ID          uuid.UUID
	Title       string
	Slug        string
	Description string
	Published   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// Chapter groups videos inside a course; Position orders chapters.
type Chapter struct {
	ID        uuid.UUID
	CourseID  uuid.UUID
	Title     string
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Video is a single watchable unit. ProviderVideoID links it to the
// hosting/CDN provider; it is empty until an upload has been attached.
type Video struct {
	ID               uuid.UUID
	ChapterID        uuid.UUID
	Title            string
	Position         int
	ProviderVideoID  string
	RequiresWorkbook bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time
}

// VideoContext is a video joined with its chapter and course, used by the
// gateway watch page for breadcrumbs and unlock evaluation.
type VideoContext struct {
	Video   Video
	Chapter Chapter
	Course  Course
}

// ChapterPosition is one entry of a batch chapter reorder.
type ChapterPosition struct {
	ID       uuid.UUID
	Position int
}

// VideoPosition is one entry of a batch video reorder; moving a video to a
// different chapter is part of the same operation.
type VideoPosition struct {
	ID        uuid.UUID
	ChapterID uuid.UUID
	Position  int
}

// CatalogStore defines all persistence operations for the catalog service.
// Reads never return soft-deleted rows.
type CatalogStore interface {
	// Course writes
	CreateCourse(ctx context.Context, title, description string) (Course, error)
	UpdateCourse(ctx context.Context, id uuid.UUID, title, description string) (Course, error)
	SetCoursePublished(ctx context.Context, id uuid.UUID, published bool) error
	SoftDeleteCourse(ctx context.Context, id uuid.UUID) error

	// Course reads
	ListCourses(ctx context.Context, publishedOnly bool) ([]Course, error)
	GetCourseBySlug(ctx context.Context, slug string) (Course, error)

	// Chapter writes
	CreateChapter(ctx context.Context, courseID uuid.UUID, title string) (Chapter, error)
	UpdateChapter(ctx context.Context, id uuid.UUID, title string) (Chapter, error)
	SoftDeleteChapter(ctx context.Context, id uuid.UUID) error
	UpdateChapterPositions(ctx context.Context, updates []ChapterPosition) error

	// Video writes
	CreateVideo(ctx context.Context, chapterID uuid.UUID, title, providerVideoID string, requiresWorkbook bool) (Video, error)
	UpdateVideo(ctx context.Context, id, chapterID uuid.UUID, title string, requiresWorkbook bool) (Video, error)
	SoftDeleteVideo(ctx context.Context, id uuid.UUID) error
	UpdateVideoPositions(ctx context.Context, updates []VideoPosition) error

	// Reads for learners and the gateway
	ListChapters(ctx context.Context, courseID uuid.UUID) ([]Chapter, error)
	ListCourseVideos(ctx context.Context, courseID uuid.UUID) ([]Video, error)
	GetVideoContext(ctx context.Context, videoID uuid.UUID) (VideoContext, error)
}

var slugStripRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL slug from a course title.
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = slugStripRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
