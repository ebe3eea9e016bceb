package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is the production Postgres-backed implementation.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, p UpsertParams) (ProgressRecord, error) {
	p = p.Clamped()

	now := time.Now().UTC()
	var completedAt *time.Time
	if p.Completed {
		completedAt = &now
	}

	q := `
INSERT INTO video_progress (user_id, video_id, last_second, percent, completed_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, video_id)
DO UPDATE SET
  last_second  = EXCLUDED.last_second,
  percent      = EXCLUDED.percent,
  completed_at = EXCLUDED.completed_at,
  updated_at   = EXCLUDED.updated_at
RETURNING last_second, percent, completed_at, updated_at`

	out := ProgressRecord{UserID: p.UserID, VideoID: p.VideoID}
	err := r.db.QueryRow(ctx, q,
		p.UserID, p.VideoID, p.LastSecond, p.Percent, completedAt, now,
	).Scan(&out.LastSecond, &out.Percent, &out.CompletedAt, &out.UpdatedAt)
	if err != nil {
		return ProgressRecord{}, fmt.Errorf("progress upsert: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, videoID uuid.UUID) (ProgressRecord, error) {
	q := `SELECT last_second, percent, completed_at, updated_at
	      FROM video_progress WHERE user_id=$1 AND video_id=$2`
	out := ProgressRecord{UserID: userID, VideoID: videoID}
	err := r.db.QueryRow(ctx, q, userID, videoID).
		Scan(&out.LastSecond, &out.Percent, &out.CompletedAt, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProgressRecord{}, ErrNotFound
		}
		return ProgressRecord{}, fmt.Errorf("progress get: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]ProgressRecord, error) {
	q := `SELECT video_id, last_second, percent, completed_at, updated_at
	      FROM video_progress WHERE user_id=$1`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("progress list: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows, userID)
}

func (r *PostgresRepository) ListInProgress(ctx context.Context, userID uuid.UUID, limit int, cursor *ContinueCursor) ([]ProgressRecord, error) {
	q := `SELECT video_id, last_second, percent, completed_at, updated_at
	      FROM video_progress WHERE user_id=$1 AND completed_at IS NULL`
	args := []any{userID}

	if cursor != nil {
		// The cursor timestamp is compared as-is; pgx encodes time.Time at
		// microseconds, matching the column's precision exactly.
		q += " AND (updated_at, video_id) < ($2, $3)"
		args = append(args, cursor.UpdatedAt, cursor.VideoID)
	}
	q += " ORDER BY updated_at DESC, video_id DESC LIMIT $" + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("progress list in-progress: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows, userID)
}

func scanRecords(rows pgx.Rows, userID uuid.UUID) ([]ProgressRecord, error) {
	var out []ProgressRecord
	for rows.Next() {
		rec := ProgressRecord{UserID: userID}
		if err := rows.Scan(&rec.VideoID, &rec.LastSecond, &rec.Percent, &rec.CompletedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("progress scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
