package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/example/course-platform/services/auth/internal/domain"
)

type CreateUserParams struct {
	Email        string
	Username     string
	PasswordHash string
}

func (s Store) CreateUser(ctx context.Context, p CreateUserParams) (domain.User, error) {
	q := `
INSERT INTO users (id, email, username, password_hash)
VALUES ($1, $2, $3, $4)
RETURNING id::text, email, username, role, created_at;
`
	var u domain.User
	err := s.DB.QueryRow(ctx, q, uuid.New(), p.Email, p.Username, p.PasswordHash).
		Scan(&u.ID, &u.Email, &u.Username, &u.Role, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, ErrConflict
		}
		return domain.User{}, err
	}
	return u, nil
}

// UserRow carries the password hash alongside the public user fields so
// login can verify credentials in one query.
type UserRow struct {
	User         domain.User
	PasswordHash string
}

// FindUserByLogin looks a user up by email or username, case-insensitive.
func (s Store) FindUserByLogin(ctx context.Context, login string) (UserRow, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return UserRow{}, ErrNotFound
	}

	q := `
SELECT id::text, email, username, role, password_hash, created_at
FROM users
WHERE lower(email) = lower($1) OR lower(username) = lower($1)
LIMIT 1;
`
	var row UserRow
	err := s.DB.QueryRow(ctx, q, login).
		Scan(&row.User.ID, &row.User.Email, &row.User.Username, &row.User.Role, &row.PasswordHash, &row.User.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRow{}, ErrNotFound
		}
		return UserRow{}, err
	}
	return row, nil
}

func (s Store) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	q := `SELECT id, email, username, role, created_at FROM users WHERE id = $1::uuid LIMIT 1;`
	var u domain.User
	err := s.DB.QueryRow(ctx, q, userID).Scan(&u.ID, &u.Email, &u.Username, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	return u, nil
}

func (s Store) SetUserRoleByID(ctx context.Context, userID uuid.UUID, role string) error {
	q := `UPDATE users SET role=$2 WHERE id=$1;`
	_, err := s.DB.Exec(ctx, q, userID, role)
	return err
}

// UserSummary is an account as the admin listing sees it. LastLoginAt is the
// newest refresh session, nil for accounts that never signed in.
type UserSummary struct {
	domain.User
	LastLoginAt *time.Time
}

// ListUsers returns every account, newest first.
func (s Store) ListUsers(ctx context.Context) ([]UserSummary, error) {
	q := `
SELECT u.id::text, u.email, u.username, u.role, u.created_at, max(s.created_at)
FROM users u
LEFT JOIN refresh_sessions s ON s.user_id = u.id
GROUP BY u.id, u.email, u.username, u.role, u.created_at
ORDER BY u.created_at DESC;
`
	rows, err := s.DB.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserSummary
	for rows.Next() {
		var u UserSummary
		if err := rows.Scan(&u.ID, &u.Email, &u.Username, &u.Role, &u.CreatedAt, &u.LastLoginAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
