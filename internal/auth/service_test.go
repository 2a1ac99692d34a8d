package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/murphys-tech/catalog-api/internal/common"
)

type memStore struct {
	users  map[string]UserRecord // by email
	byID   map[string]UserRecord
	tokens map[string]*RefreshToken // by hash
	nextID int
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[string]UserRecord{},
		byID:   map[string]UserRecord{},
		tokens: map[string]*RefreshToken{},
	}
}

func (m *memStore) CreateUser(_ context.Context, name, email, passwordHash, role string) (UserRecord, error) {
	if _, exists := m.users[email]; exists {
		return UserRecord{}, fmt.Errorf("duplicate email")
	}
	m.nextID++
	u := UserRecord{
		ID: fmt.Sprintf("u%d", m.nextID), Name: name, Email: email,
		PasswordHash: passwordHash, Role: role,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	m.users[email] = u
	m.byID[u.ID] = u
	return u, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	u, ok := m.users[email]
	if !ok {
		return UserRecord{}, ErrNotFound
	}
	return u, nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (UserRecord, error) {
	u, ok := m.byID[id]
	if !ok {
		return UserRecord{}, ErrNotFound
	}
	return u, nil
}

func (m *memStore) CreateRefreshToken(_ context.Context, userID, tokenHash string, expiresAt time.Time) error {
	m.nextID++
	m.tokens[tokenHash] = &RefreshToken{
		ID: fmt.Sprintf("s%d", m.nextID), UserID: userID,
		TokenHash: tokenHash, ExpiresAt: expiresAt,
	}
	return nil
}

func (m *memStore) GetRefreshToken(_ context.Context, tokenHash string) (RefreshToken, error) {
	t, ok := m.tokens[tokenHash]
	if !ok {
		return RefreshToken{}, ErrNotFound
	}
	return *t, nil
}

func (m *memStore) RotateRefreshToken(_ context.Context, id, newHash string, expiresAt time.Time) error {
	for hash, t := range m.tokens {
		if t.ID == id && t.RevokedAt == nil {
			delete(m.tokens, hash)
			t.TokenHash = newHash
			t.ExpiresAt = expiresAt
			m.tokens[newHash] = t
			return nil
		}
	}
	return ErrNotFound
}

func (m *memStore) RevokeRefreshToken(_ context.Context, tokenHash string) error {
	if t, ok := m.tokens[tokenHash]; ok && t.RevokedAt == nil {
		now := time.Now()
		t.RevokedAt = &now
	}
	return nil
}

func (m *memStore) RevokeUserTokens(_ context.Context, userID string) error {
	now := time.Now()
	for _, t := range m.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	return nil
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	svc, err := NewService(Config{Store: store, Secret: "test-secret-key"})
	require.NoError(t, err)
	return svc, store
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Dana", "Dana@Example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, "dana@example.com", user.Email)
	require.Equal(t, common.RoleClient, user.Role)

	_, err = svc.Register(ctx, "Dana", "dana@example.com", "short")
	require.Error(t, err)

	result, err := svc.Login(ctx, "dana@example.com", "correct horse")
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)
	require.NotEmpty(t, result.RefreshToken)

	_, err = svc.Login(ctx, "dana@example.com", "wrong password")
	require.Error(t, err)
}

func TestParseAccessTokenCarriesRole(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Dana", "dana@example.com", "correct horse")
	require.NoError(t, err)
	// promote out of band
	u := store.users["dana@example.com"]
	u.Role = common.RoleAdmin
	store.users[u.Email] = u
	store.byID[u.ID] = u

	result, err := svc.Login(ctx, "dana@example.com", "correct horse")
	require.NoError(t, err)

	identity, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, identity.UserID)
	require.Equal(t, common.RoleAdmin, identity.Role)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Dana", "dana@example.com", "correct horse")
	require.NoError(t, err)
	login, err := svc.Login(ctx, "dana@example.com", "correct horse")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// the old token is gone after rotation
	_, err = svc.Refresh(ctx, login.RefreshToken)
	require.Error(t, err)

	// the rotated token still works
	_, err = svc.Refresh(ctx, refreshed.RefreshToken)
	require.NoError(t, err)
}

func TestExpiredAccessTokenRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Dana", "dana@example.com", "correct horse")
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	svc.WithNow(func() time.Time { return past })
	login, err := svc.Login(ctx, "dana@example.com", "correct horse")
	require.NoError(t, err)

	svc.WithNow(time.Now)
	_, err = svc.ParseAccessToken(login.AccessToken)
	require.Error(t, err)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Dana", "dana@example.com", "correct horse")
	require.NoError(t, err)
	login, err := svc.Login(ctx, "dana@example.com", "correct horse")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, login.RefreshToken))
	_, err = svc.Refresh(ctx, login.RefreshToken)
	require.Error(t, err)
}

func TestMiddlewareRequireAdmin(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Client", "client@example.com", "correct horse")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "Admin", "admin@example.com", "correct horse")
	require.NoError(t, err)
	admin := store.users["admin@example.com"]
	admin.Role = common.RoleAdmin
	store.users[admin.Email] = admin
	store.byID[admin.ID] = admin

	mw := Middleware{Service: svc}
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	protected := mw.RequireAdmin(next)

	call := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusUnauthorized, call(""))

	clientLogin, err := svc.Login(ctx, "client@example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, call(clientLogin.AccessToken))

	adminLogin, err := svc.Login(ctx, "admin@example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, call(adminLogin.AccessToken))
}
