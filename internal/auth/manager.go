package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultSessionTTL is how long a session stays valid after login.
const DefaultSessionTTL = 8 * time.Hour

// Manager issues, validates, and revokes sessions.
type Manager struct {
	users  *Directory
	store  SessionStore
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets a logger for session events.
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithSessionTTL sets the session lifetime.
func WithSessionTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// NewManager creates a session manager.
func NewManager(users *Directory, store SessionStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		users:  users,
		store:  store,
		ttl:    DefaultSessionTTL,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewStore builds the session store selected by cfg.
func NewStore(ctx context.Context, cfg *config.AuthConfig) (SessionStore, error) {
	switch cfg.Store {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := NewRedisStore(client, cfg.Redis.KeyPrefix)
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, err
		}
		return store, nil
	case config.StoreMemory, "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}

// Login checks credentials and starts a session.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := m.users.Authenticate(email, password)
	if err != nil {
		return nil, err
	}
	now := m.now()
	s := &Session{
		Token:     uuid.New().String(),
		User:      *user,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	m.logger.Debug("session started", zap.String("email", user.Email))
	return s, nil
}

// Validate returns the user owning token. Missing, unknown, and expired tokens give ErrUnauthorized.
func (m *Manager) Validate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	s, err := m.store.Get(ctx, token)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if s.Expired(m.now()) {
		_ = m.store.Delete(ctx, token)
		return nil, ErrUnauthorized
	}
	u := s.User
	return &u, nil
}

// Logout ends the session for token.
func (m *Manager) Logout(ctx context.Context, token string) error {
	if err := m.store.Delete(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Cleanup removes expired sessions from the store.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	n, err := m.store.Cleanup(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up sessions: %w", err)
	}
	if n > 0 {
		m.logger.Info("expired sessions removed", zap.Int("count", n))
	}
	return n, nil
}

// Close releases the session store.
func (m *Manager) Close() error {
	return m.store.Close()
}
