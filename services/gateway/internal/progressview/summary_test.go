package progressview

import (
	"testing"

	"github.com/example/course-platform/services/gateway/internal/session"
)

func progressMap(entries ...session.Entry) func(string) (session.Entry, bool) {
	m := make(map[string]session.Entry, len(entries))
	for _, e := range entries {
		m[e.VideoID] = e
	}
	return func(id string) (session.Entry, bool) {
		e, ok := m[id]
		return e, ok
	}
}

func TestSummarize_EmptyCourseIsZeroPercent(t *testing.T) {
	s := Summarize("c1", nil, progressMap())
	if s.TotalVideos != 0 || s.PercentComplete != 0 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestSummarize_CountsAndRounds(t *testing.T) {
	videos := []VideoRef{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	s := Summarize("c1", videos, progressMap(
		session.Entry{VideoID: "a", Completed: true, Percent: 100, UpdatedAtMs: 10},
	))
	if s.CompletedVideos != 1 {
		t.Fatalf("expected 1 completed, got %d", s.CompletedVideos)
	}
	// 1 of 3 rounds to 33.
	if s.PercentComplete != 33 {
		t.Fatalf("expected 33%%, got %d", s.PercentComplete)
	}

	s = Summarize("c1", videos, progressMap(
		session.Entry{VideoID: "a", Completed: true, UpdatedAtMs: 10},
		session.Entry{VideoID: "b", Completed: true, UpdatedAtMs: 20},
	))
	// 2 of 3 rounds to 67.
	if s.PercentComplete != 67 {
		t.Fatalf("expected 67%%, got %d", s.PercentComplete)
	}
}

func TestSummarize_LastTouchedByUpdatedAt(t *testing.T) {
	videos := []VideoRef{{ID: "a", Title: "Intro"}, {ID: "b", Title: "Setup"}}
	s := Summarize("c1", videos, progressMap(
		session.Entry{VideoID: "a", Percent: 100, UpdatedAtMs: 100},
		session.Entry{VideoID: "b", Percent: 40, UpdatedAtMs: 200},
	))
	if s.LastVideoID != "b" || s.LastVideoTitle != "Setup" || s.LastVideoPercent != 40 {
		t.Fatalf("unexpected last video %+v", s)
	}
}

func TestSummarize_TieBreaksOnSmallerVideoID(t *testing.T) {
	videos := []VideoRef{{ID: "b", Title: "Second"}, {ID: "a", Title: "First"}}
	s := Summarize("c1", videos, progressMap(
		session.Entry{VideoID: "b", Percent: 10, UpdatedAtMs: 500},
		session.Entry{VideoID: "a", Percent: 90, UpdatedAtMs: 500},
	))
	if s.LastVideoID != "a" {
		t.Fatalf("expected tie broken to a, got %s", s.LastVideoID)
	}
}

func TestSummarize_WorkbooksCountedNotCompleted(t *testing.T) {
	videos := []VideoRef{
		{ID: "a", RequiresWorkbook: true},
		{ID: "b"},
		{ID: "c", RequiresWorkbook: true},
	}
	s := Summarize("c1", videos, progressMap(
		session.Entry{VideoID: "a", Completed: true, UpdatedAtMs: 1},
	))
	if s.TotalWorkbooks != 2 {
		t.Fatalf("expected 2 workbooks, got %d", s.TotalWorkbooks)
	}
	if s.CompletedWorkbooks != 0 {
		t.Fatalf("expected 0 completed workbooks, got %d", s.CompletedWorkbooks)
	}
}

func TestSummarizeAll(t *testing.T) {
	o := SummarizeAll([]CourseSummary{
		{TotalVideos: 4, CompletedVideos: 4},
		{TotalVideos: 6, CompletedVideos: 1},
	})
	if o.TotalVideos != 10 || o.CompletedVideos != 5 || o.PercentComplete != 50 {
		t.Fatalf("unexpected overall %+v", o)
	}

	empty := SummarizeAll(nil)
	if empty.PercentComplete != 0 {
		t.Fatalf("expected 0%% for no courses, got %d", empty.PercentComplete)
	}
}
