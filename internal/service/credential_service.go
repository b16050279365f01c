package service

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// CredentialVerifier is the username -> password lookup behind login.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (bool, error)
}

// StaticCredentials verifies against a fixed in-memory map. Matching is
// exact and case-sensitive on both fields.
type StaticCredentials struct {
	users map[string]string
}

// NewStaticCredentials copies users into a new StaticCredentials.
func NewStaticCredentials(users map[string]string) *StaticCredentials {
	m := make(map[string]string, len(users))
	for k, v := range users {
		m[k] = v
	}
	return &StaticCredentials{users: m}
}

// Verify reports whether password belongs to username.
func (c *StaticCredentials) Verify(_ context.Context, username, password string) (bool, error) {
	want, ok := c.users[username]
	if !ok {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(password)) == 1, nil
}

// DatabaseCredentials verifies against bcrypt hashes in the users table.
type DatabaseCredentials struct {
	users *repository.UserRepository
}

// NewDatabaseCredentials creates a new DatabaseCredentials.
func NewDatabaseCredentials(users *repository.UserRepository) *DatabaseCredentials {
	return &DatabaseCredentials{users: users}
}

// Verify reports whether password matches the stored hash for username.
func (c *DatabaseCredentials) Verify(ctx context.Context, username, password string) (bool, error) {
	user, err := c.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}
