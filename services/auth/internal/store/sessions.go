package store

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type CreateRefreshSessionParams struct {
	SessionID uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	UserAgent string
	IP        net.IP
	Now       time.Time
}

func (s Store) CreateRefreshSession(ctx context.Context, p CreateRefreshSessionParams) error {
	q := `
INSERT INTO refresh_sessions (id, user_id, token_hash, expires_at, created_at, user_agent, ip)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
	_, err := s.DB.Exec(ctx, q,
		p.SessionID, p.UserID, p.TokenHash, p.ExpiresAt, p.Now,
		nullableString(p.UserAgent), nullableInet(p.IP))
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

type RefreshSession struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
}

func (s Store) GetRefreshSessionByHash(ctx context.Context, tokenHash string) (RefreshSession, error) {
	q := `
SELECT id, user_id, token_hash, expires_at, revoked_at
FROM refresh_sessions
WHERE token_hash = $1
LIMIT 1;
`
	var rs RefreshSession
	err := s.DB.QueryRow(ctx, q, tokenHash).Scan(&rs.ID, &rs.UserID, &rs.TokenHash, &rs.ExpiresAt, &rs.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RefreshSession{}, ErrNotFound
		}
		return RefreshSession{}, err
	}
	return rs, nil
}

func (s Store) RevokeRefreshSession(ctx context.Context, sessionID uuid.UUID, now time.Time) error {
	q := `UPDATE refresh_sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL;`
	_, err := s.DB.Exec(ctx, q, sessionID, now)
	return err
}

// ReplaceRefreshSession revokes the old session and records which session
// superseded it, keeping the rotation chain auditable.
func (s Store) ReplaceRefreshSession(ctx context.Context, oldID, newID uuid.UUID, now time.Time) error {
	q := `UPDATE refresh_sessions SET revoked_at = $3, replaced_by_session_id = $2 WHERE id = $1 AND revoked_at IS NULL;`
	_, err := s.DB.Exec(ctx, q, oldID, newID, now)
	return err
}
