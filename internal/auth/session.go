package auth

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/tanya/internal/models"
)

// ErrSessionNotFound is returned by stores for unknown tokens.
var ErrSessionNotFound = errors.New("session not found")

// Session is a logged-in user's capability token.
type Session struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Expired reports whether the session has expired at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionStore persists sessions. Implementations are safe for concurrent use.
type SessionStore interface {
	Save(ctx context.Context, s *Session) error
	// Get returns ErrSessionNotFound for unknown tokens.
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	// Cleanup removes sessions expired at now and returns how many were removed.
	Cleanup(ctx context.Context, now time.Time) (int, error)
	Close() error
}
