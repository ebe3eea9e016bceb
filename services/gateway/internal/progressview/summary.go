// Package progressview folds raw progress entries into the per-course and
// account-wide summaries the UI renders.
package progressview

import (
	"math"

	"github.com/example/course-platform/services/gateway/internal/session"
)

// VideoRef is the slice of catalog data the aggregation needs, in catalog
// order.
type VideoRef struct {
	ID               string
	Title            string
	RequiresWorkbook bool
}

// CourseSummary is one course's progress rollup.
type CourseSummary struct {
	CourseID           string `json:"course_id"`
	TotalVideos        int    `json:"total_videos"`
	CompletedVideos    int    `json:"completed_videos"`
	PercentComplete    int    `json:"percent_complete"`
	TotalWorkbooks     int    `json:"total_workbooks"`
	CompletedWorkbooks int    `json:"completed_workbooks"`
	LastVideoID        string `json:"last_video_id,omitempty"`
	LastVideoTitle     string `json:"last_video_title,omitempty"`
	LastVideoPercent   int    `json:"last_video_percent,omitempty"`
}

// Overall is the account-wide rollup across every course.
type Overall struct {
	TotalVideos     int `json:"total_videos"`
	CompletedVideos int `json:"completed_videos"`
	PercentComplete int `json:"percent_complete"`
}

// Summarize builds a course summary. The last-touched video is the entry with
// the greatest UpdatedAtMs; on a tie the smaller video ID wins so the result
// is stable. An empty course reports zero percent rather than dividing by
// zero. Workbook submission tracking is not live yet, so completed workbooks
// stays at zero while the totals are already counted.
func Summarize(courseID string, videos []VideoRef, progress func(videoID string) (session.Entry, bool)) CourseSummary {
	s := CourseSummary{CourseID: courseID, TotalVideos: len(videos)}

	var last session.Entry
	lastTitle := ""
	for _, v := range videos {
		if v.RequiresWorkbook {
			s.TotalWorkbooks++
		}
		e, ok := progress(v.ID)
		if !ok {
			continue
		}
		if e.Completed {
			s.CompletedVideos++
		}
		if e.UpdatedAtMs > last.UpdatedAtMs ||
			(e.UpdatedAtMs == last.UpdatedAtMs && last.VideoID != "" && e.VideoID < last.VideoID) {
			last = e
			lastTitle = v.Title
		}
	}

	if last.VideoID != "" {
		s.LastVideoID = last.VideoID
		s.LastVideoTitle = lastTitle
		s.LastVideoPercent = last.Percent
	}
	s.PercentComplete = percent(s.CompletedVideos, s.TotalVideos)
	return s
}

// SummarizeAll rolls per-course summaries into one account-wide figure.
func SummarizeAll(courses []CourseSummary) Overall {
	var o Overall
	for _, c := range courses {
		o.TotalVideos += c.TotalVideos
		o.CompletedVideos += c.CompletedVideos
	}
	o.PercentComplete = percent(o.CompletedVideos, o.TotalVideos)
	return o
}

func percent(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}
