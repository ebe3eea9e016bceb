package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

// ProgressRecord is the persisted watch state for one (user, video) pair.
// Exactly one record exists per pair; writes are upserts on that key.
type ProgressRecord struct {
	UserID      uuid.UUID
	VideoID     uuid.UUID
	LastSecond  int
	Percent     int
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

// Completed reports whether the record carries a completion timestamp.
func (r ProgressRecord) Completed() bool { return r.CompletedAt != nil }

// UpsertParams carries a single progress write. LastSecond and Percent are
// clamped before hitting storage: percent to [0,100], last second to >= 0.
type UpsertParams struct {
	UserID     uuid.UUID
	VideoID    uuid.UUID
	LastSecond int
	Percent    int
	Completed  bool
}

// Clamped returns a copy with the storage invariants applied.
func (p UpsertParams) Clamped() UpsertParams {
	if p.LastSecond < 0 {
		p.LastSecond = 0
	}
	if p.Percent < 0 {
		p.Percent = 0
	}
	if p.Percent > 100 {
		p.Percent = 100
	}
	return p
}

// ContinueCursor is the decoded form of the opaque pagination cursor.
type ContinueCursor struct {
	UpdatedAt time.Time
	VideoID   uuid.UUID
}

// Repository defines persistence operations for watch progress.
type Repository interface {
	// Upsert inserts or updates the record for (user, video) and returns the
	// written row. completed_at is set to the write time when Completed is
	// true and cleared when it is false.
	Upsert(ctx context.Context, p UpsertParams) (ProgressRecord, error)
	// Get returns the record for (user, video) or ErrNotFound.
	Get(ctx context.Context, userID, videoID uuid.UUID) (ProgressRecord, error)
	// ListByUser returns every record for the user, order unspecified.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]ProgressRecord, error)
	// ListInProgress returns up to limit not-yet-completed records ordered by
	// updated_at DESC. cursor, if non-nil, acts as an exclusive lower bound
	// for keyset pagination.
	ListInProgress(ctx context.Context, userID uuid.UUID, limit int, cursor *ContinueCursor) ([]ProgressRecord, error)
}
