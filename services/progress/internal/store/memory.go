package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type progressKey struct {
	userID  uuid.UUID
	videoID uuid.UUID
}

// InMemoryRepository is a development/test in-memory implementation.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[progressKey]ProgressRecord
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{records: make(map[progressKey]ProgressRecord)}
}

func (s *InMemoryRepository) Upsert(_ context.Context, p UpsertParams) (ProgressRecord, error) {
	p = p.Clamped()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Microsecond precision, same as a Postgres timestamp, so cursors built
	// from returned rows compare identically against both implementations.
	now := time.Now().UTC().Truncate(time.Microsecond)
	rec := ProgressRecord{
		UserID:     p.UserID,
		VideoID:    p.VideoID,
		LastSecond: p.LastSecond,
		Percent:    p.Percent,
		UpdatedAt:  now,
	}
	if p.Completed {
		rec.CompletedAt = &now
	}
	s.records[progressKey{p.UserID, p.VideoID}] = rec
	return rec, nil
}

func (s *InMemoryRepository) Get(_ context.Context, userID, videoID uuid.UUID) (ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[progressKey{userID, videoID}]
	if !ok {
		return ProgressRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *InMemoryRepository) ListByUser(_ context.Context, userID uuid.UUID) ([]ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ProgressRecord
	for k, rec := range s.records {
		if k.userID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *InMemoryRepository) ListInProgress(_ context.Context, userID uuid.UUID, limit int, cursor *ContinueCursor) ([]ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ProgressRecord
	for k, rec := range s.records {
		if k.userID != userID || rec.CompletedAt != nil {
			continue
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].VideoID.String() > out[j].VideoID.String()
	})

	if cursor != nil {
		filtered := out[:0]
		for _, rec := range out {
			if rec.UpdatedAt.After(cursor.UpdatedAt) {
				continue
			}
			if rec.UpdatedAt.Equal(cursor.UpdatedAt) && rec.VideoID.String() >= cursor.VideoID.String() {
				continue
			}
			filtered = append(filtered, rec)
		}
		out = filtered
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
