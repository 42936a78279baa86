package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func hash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func testDirectory(t *testing.T) *Directory {
	t.Helper()
	d, err := NewDirectory([]config.UserConfig{
		{Email: "Agent@Bank.example", Name: "Agent One", Role: models.RoleAgent, PasswordHash: hash(t, "agent-pass")},
		{Email: "admin@bank.example", Role: models.RoleAdmin, PasswordHash: hash(t, "admin-pass")},
	})
	require.NoError(t, err)
	return d
}

func TestDirectory_Authenticate(t *testing.T) {
	d := testDirectory(t)
	assert.Equal(t, 2, d.Len())

	u, err := d.Authenticate(" agent@bank.example ", "agent-pass")
	require.NoError(t, err)
	assert.Equal(t, models.User{Email: "agent@bank.example", Name: "Agent One", Role: models.RoleAgent}, *u)

	admin, err := d.Authenticate("admin@bank.example", "admin-pass")
	require.NoError(t, err)
	assert.Equal(t, "admin@bank.example", admin.Name, "name defaults to email")
	assert.True(t, admin.IsAdmin())

	_, err = d.Authenticate("agent@bank.example", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = d.Authenticate("nobody@bank.example", "agent-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestNewDirectory_RejectsBadHash(t *testing.T) {
	_, err := NewDirectory([]config.UserConfig{{Email: "a@b.c", PasswordHash: "plaintext"}})
	assert.Error(t, err)
}

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("s3cret")))
	_, err = HashPassword("")
	assert.Error(t, err)
}

func TestManager_LoginValidateLogout(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	m := NewManager(testDirectory(t), store, WithClock(func() time.Time { return now }))

	s, err := m.Login(ctx, "agent@bank.example", "agent-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, s.Token)
	assert.Equal(t, now.Add(8*time.Hour), s.ExpiresAt)

	u, err := m.Validate(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, "agent@bank.example", u.Email)

	_, err = m.Validate(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = m.Validate(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, m.Logout(ctx, s.Token))
	_, err = m.Validate(ctx, s.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = m.Login(ctx, "agent@bank.example", "bad")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestManager_ExpiryAndCleanup(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	m := NewManager(testDirectory(t), store,
		WithClock(func() time.Time { return now }),
		WithSessionTTL(time.Hour),
	)

	first, err := m.Login(ctx, "agent@bank.example", "agent-pass")
	require.NoError(t, err)
	now = now.Add(30 * time.Minute)
	_, err = m.Login(ctx, "admin@bank.example", "admin-pass")
	require.NoError(t, err)

	now = now.Add(45 * time.Minute)
	_, err = m.Validate(ctx, first.Token)
	assert.ErrorIs(t, err, ErrUnauthorized, "expired session")
	assert.Equal(t, 1, store.Len(), "expired session removed on validation")

	now = now.Add(time.Hour)
	n, err := m.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, store.Len())
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, "tanya:session:")
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Ping(ctx))

	s := &Session{
		Token:     "tok-1",
		User:      models.User{Email: "agent@bank.example", Role: models.RoleAgent},
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Save(ctx, s))
	assert.True(t, mr.Exists("tanya:session:tok-1"))

	got, err := store.Get(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "agent@bank.example", got.User.Email)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	mr.FastForward(2 * time.Hour)
	_, err = store.Get(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrSessionNotFound, "key expires with the session")

	require.NoError(t, store.Save(ctx, s))
	require.NoError(t, store.Delete(ctx, "tok-1"))
	assert.False(t, mr.Exists("tanya:session:tok-1"))

	n, err := store.Cleanup(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()
	st, err := NewStore(ctx, &config.AuthConfig{Store: config.StoreMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, st)

	mr := miniredis.RunT(t)
	st, err = NewStore(ctx, &config.AuthConfig{Store: config.StoreRedis, Redis: config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "p:"}})
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, st)
	require.NoError(t, st.Close())

	_, err = NewStore(ctx, &config.AuthConfig{Store: "memcached"})
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	ctx := context.Background()
	m := NewManager(testDirectory(t), NewMemoryStore())
	agent, err := m.Login(ctx, "agent@bank.example", "agent-pass")
	require.NoError(t, err)
	admin, err := m.Login(ctx, "admin@bank.example", "admin-pass")
	require.NoError(t, err)

	var seen *models.User
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	protected := Middleware(m)(ok)
	adminOnly := Middleware(m)(RequireRole(models.RoleAdmin)(ok))

	tests := []struct {
		name    string
		handler http.Handler
		header  string
		want    int
	}{
		{"no_header", protected, "", http.StatusUnauthorized},
		{"wrong_scheme", protected, "Basic abc", http.StatusUnauthorized},
		{"unknown_token", protected, "Bearer nope", http.StatusUnauthorized},
		{"valid", protected, "Bearer " + agent.Token, http.StatusOK},
		{"lowercase_scheme", protected, "bearer " + agent.Token, http.StatusOK},
		{"agent_on_admin_route", adminOnly, "Bearer " + agent.Token, http.StatusForbidden},
		{"admin_on_admin_route", adminOnly, "Bearer " + admin.Token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodPost, "/ask", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				require.NotNil(t, seen)
			} else {
				assert.Nil(t, seen)
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}
