// Package bootstrap handles first-run setup that cannot go through the API,
// like seeding the initial admin account.
package bootstrap

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// undefinedTable is SQLSTATE 42P01.
const undefinedTable = "42P01"

// PromoteAdmin grants the admin role to the user matching username,
// case-insensitive. It is called on every startup and is a no-op when the
// username is unset, unknown, or the schema has not been migrated yet.
func PromoteAdmin(ctx context.Context, db *pgxpool.Pool, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil
	}

	q := `UPDATE users SET role='admin' WHERE lower(username)=lower($1);`
	_, err := db.Exec(ctx, q, username)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return nil
	}
	return err
}
