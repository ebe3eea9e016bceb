package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestUpsert_ClampsPercentAndLastSecond(t *testing.T) {
	s := NewInMemoryRepository()
	ctx := context.Background()
	user, video := uuid.New(), uuid.New()

	rec, err := s.Upsert(ctx, UpsertParams{
		UserID:     user,
		VideoID:    video,
		LastSecond: -5,
		Percent:    150,
		Completed:  true,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if rec.Percent != 100 {
		t.Fatalf("expected percent clamped to 100, got %d", rec.Percent)
	}
	if rec.LastSecond != 0 {
		t.Fatalf("expected last_second floored to 0, got %d", rec.LastSecond)
	}
	if rec.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}
}

func TestUpsert_NegativePercentClampedToZero(t *testing.T) {
	s := NewInMemoryRepository()
	rec, err := s.Upsert(context.Background(), UpsertParams{
		UserID: uuid.New(), VideoID: uuid.New(), Percent: -10,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if rec.Percent != 0 {
		t.Fatalf("expected percent 0, got %d", rec.Percent)
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	s := NewInMemoryRepository()
	ctx := context.Background()
	user, video := uuid.New(), uuid.New()
	p := UpsertParams{UserID: user, VideoID: video, LastSecond: 30, Percent: 25}

	first, err := s.Upsert(ctx, p)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := s.Upsert(ctx, p)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	recs, _ := s.ListByUser(ctx, user)
	if len(recs) != 1 {
		t.Fatalf("expected exactly one record per (user,video), got %d", len(recs))
	}
	if second.UpdatedAt.Before(first.UpdatedAt) {
		t.Fatalf("expected second updated_at >= first: %v < %v", second.UpdatedAt, first.UpdatedAt)
	}
}

func TestCompletionRoundtrip(t *testing.T) {
	s := NewInMemoryRepository()
	ctx := context.Background()
	user, video := uuid.New(), uuid.New()

	// Watch partway, complete manually, then undo.
	_, err := s.Upsert(ctx, UpsertParams{UserID: user, VideoID: video, LastSecond: 120, Percent: 40})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	done, err := s.Upsert(ctx, UpsertParams{UserID: user, VideoID: video, LastSecond: 120, Percent: 40, Completed: true})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.CompletedAt == nil {
		t.Fatal("expected completed_at after marking complete")
	}

	undone, err := s.Upsert(ctx, UpsertParams{UserID: user, VideoID: video, LastSecond: 120, Percent: 40, Completed: false})
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if undone.CompletedAt != nil {
		t.Fatal("expected completed_at cleared after undo")
	}
	if undone.LastSecond != 120 || undone.Percent != 40 {
		t.Fatalf("expected position preserved, got last_second=%d percent=%d", undone.LastSecond, undone.Percent)
	}
}

func TestGet_AbsentReturnsNotFound(t *testing.T) {
	s := NewInMemoryRepository()
	_, err := s.Get(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListInProgress_ExcludesCompletedAndOrders(t *testing.T) {
	s := NewInMemoryRepository()
	ctx := context.Background()
	user := uuid.New()

	a, b, c := uuid.New(), uuid.New(), uuid.New()
	_, _ = s.Upsert(ctx, UpsertParams{UserID: user, VideoID: a, Percent: 10})
	time.Sleep(2 * time.Millisecond)
	_, _ = s.Upsert(ctx, UpsertParams{UserID: user, VideoID: b, Percent: 95, Completed: true})
	time.Sleep(2 * time.Millisecond)
	_, _ = s.Upsert(ctx, UpsertParams{UserID: user, VideoID: c, Percent: 50})

	recs, err := s.ListInProgress(ctx, user, 10, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 in-progress records, got %d", len(recs))
	}
	if recs[0].VideoID != c {
		t.Fatalf("expected most recently updated first, got %s", recs[0].VideoID)
	}
	for _, rec := range recs {
		if rec.VideoID == b {
			t.Fatal("completed record must not appear in continue-watching list")
		}
	}
}

func TestListInProgress_SameTimestampPagination(t *testing.T) {
	s := NewInMemoryRepository()
	ctx := context.Background()
	user := uuid.New()

	// Four rows sharing one updated_at, as a batch-applied sample consumer
	// produces. The cursor must not lose any of them.
	stamp := time.Now().UTC().Truncate(time.Microsecond)
	videos := make(map[uuid.UUID]bool)
	for i := 0; i < 4; i++ {
		v := uuid.New()
		videos[v] = false
		s.records[progressKey{user, v}] = ProgressRecord{
			UserID: user, VideoID: v, LastSecond: 10 * i, Percent: 5 * i, UpdatedAt: stamp,
		}
	}

	var cursor *ContinueCursor
	for pages := 0; pages < 5; pages++ {
		recs, err := s.ListInProgress(ctx, user, 1, cursor)
		if err != nil {
			t.Fatalf("page %d: %v", pages, err)
		}
		if len(recs) == 0 {
			break
		}
		for _, rec := range recs {
			if videos[rec.VideoID] {
				t.Fatalf("video %s returned twice", rec.VideoID)
			}
			videos[rec.VideoID] = true
		}
		last := recs[len(recs)-1]
		// Rebuilt the way the HTTP cursor roundtrips: microsecond precision.
		cursor = &ContinueCursor{UpdatedAt: time.UnixMicro(last.UpdatedAt.UnixMicro()).UTC(), VideoID: last.VideoID}
	}

	for v, seen := range videos {
		if !seen {
			t.Fatalf("video %s lost between pages", v)
		}
	}
}

func TestListInProgress_CursorPagination(t *testing.T) {
	s := NewInMemoryRepository()
	ctx := context.Background()
	user := uuid.New()

	for i := 0; i < 5; i++ {
		_, _ = s.Upsert(ctx, UpsertParams{UserID: user, VideoID: uuid.New(), Percent: 10 + i})
		time.Sleep(2 * time.Millisecond)
	}

	page1, err := s.ListInProgress(ctx, user, 3, nil)
	if err != nil {
		t.Fatalf("page1: %v", err)
	}
	if len(page1) != 3 {
		t.Fatalf("expected 3 records, got %d", len(page1))
	}

	last := page1[len(page1)-1]
	page2, err := s.ListInProgress(ctx, user, 3, &ContinueCursor{UpdatedAt: last.UpdatedAt, VideoID: last.VideoID})
	if err != nil {
		t.Fatalf("page2: %v", err)
	}
	if len(page2) != 2 {
		t.Fatalf("expected 2 remaining records, got %d", len(page2))
	}
	for _, rec := range page2 {
		for _, seen := range page1 {
			if rec.VideoID == seen.VideoID {
				t.Fatalf("video %s returned on both pages", rec.VideoID)
			}
		}
	}
}
