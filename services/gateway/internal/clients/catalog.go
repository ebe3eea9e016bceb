package clients

import (
	"context"
	"net/http"
	"net/url"
)

// Course mirrors the catalog service's course wire form.
type Course struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Published   bool   `json:"published"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type Chapter struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

type Video struct {
	ID               string `json:"id"`
	ChapterID        string `json:"chapter_id"`
	Title            string `json:"title"`
	Position         int    `json:"position"`
	ProviderVideoID  string `json:"provider_video_id"`
	RequiresWorkbook bool   `json:"requires_workbook"`
}

// CourseDetail is a course with its chapters and videos in catalog order.
type CourseDetail struct {
	Course   Course    `json:"course"`
	Chapters []Chapter `json:"chapters"`
	Videos   []Video   `json:"videos"`
}

// VideoContext is a video with its surrounding chapter and course.
type VideoContext struct {
	Video   Video   `json:"video"`
	Chapter Chapter `json:"chapter"`
	Course  Course  `json:"course"`
}

// Catalog talks to the catalog service.
type Catalog struct {
	base
}

func NewCatalog(baseURL string, hc *http.Client) *Catalog {
	return &Catalog{base: newBase(baseURL, hc)}
}

// ListCourses returns published courses.
func (c *Catalog) ListCourses(ctx context.Context) ([]Course, error) {
	var out struct {
		Items []Course `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/courses", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// GetCourseBySlug returns a course with chapters and ordered videos.
func (c *Catalog) GetCourseBySlug(ctx context.Context, slug string) (CourseDetail, error) {
	var out CourseDetail
	err := c.doJSON(ctx, http.MethodGet, "/v1/courses/by-slug/"+url.PathEscape(slug), nil, &out)
	return out, err
}

// ListCourseVideos returns the flat ordered video list for a course.
func (c *Catalog) ListCourseVideos(ctx context.Context, courseID string) ([]Video, error) {
	var out struct {
		Items []Video `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/courses/"+url.PathEscape(courseID)+"/videos", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// GetVideo returns a video with its chapter and course context.
func (c *Catalog) GetVideo(ctx context.Context, videoID string) (VideoContext, error) {
	var out VideoContext
	err := c.doJSON(ctx, http.MethodGet, "/v1/videos/"+url.PathEscape(videoID), nil, &out)
	return out, err
}
