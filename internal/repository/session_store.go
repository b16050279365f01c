package repository

import (
	"context"
	"errors"
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionConflict = errors.New("session was modified concurrently")
)

// SessionStore keeps one isolated record per session id.
//
// Update is the only read-modify-write path: fn runs against the current
// record and its changes are committed atomically with respect to other
// Update calls on the same id. If fn returns an error nothing is written.
type SessionStore interface {
	Create(ctx context.Context, s *model.ExamSession, ttl time.Duration) error
	Get(ctx context.Context, id string) (*model.ExamSession, error)
	Update(ctx context.Context, id string, fn func(s *model.ExamSession) error) (*model.ExamSession, error)
	Delete(ctx context.Context, id string) error
}
