package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/tourdesk/internal/dataerr"
)

// UserRow is a registered account as persisted in the users table.
type UserRow struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	Name         string
	CreatedAt    time.Time
}

// CreateUser inserts a new account. Emails are compared case-insensitively;
// a taken email is a CONFLICT.
func (s *Store) CreateUser(ctx context.Context, u UserRow) error {
	res, err := s.exec(ctx, `
		INSERT INTO users (id, email, password_hash, role, name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, u.ID, NormalizeEmail(u.Email), u.PasswordHash, u.Role, u.Name, u.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create user: rows affected: %w", err)
	}
	if n == 0 {
		return dataerr.Conflict("users", NormalizeEmail(u.Email))
	}
	return nil
}

// UserByEmail returns the account registered under email, or false.
func (s *Store) UserByEmail(ctx context.Context, email string) (UserRow, bool, error) {
	var (
		u       UserRow
		created int64
	)
	err := s.queryRow(ctx, `
		SELECT id, email, password_hash, role, name, created_at
		FROM users WHERE email = ?
	`, NormalizeEmail(email)).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRow{}, false, nil
	}
	if err != nil {
		return UserRow{}, false, fmt.Errorf("user by email: %w", err)
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return u, true, nil
}

// NormalizeEmail is the form emails are stored and looked up in: NFC,
// lower case, no surrounding space.
func NormalizeEmail(email string) string {
	return norm.NFC.String(strings.ToLower(strings.TrimSpace(email)))
}
