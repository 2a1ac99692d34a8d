package settings

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	current Settings
	gets    int
}

func (m *memStore) Get(context.Context) (Settings, error) {
	m.gets++
	return m.current, nil
}

func (m *memStore) Update(_ context.Context, in Settings) (Settings, error) {
	in.UpdatedAt = time.Now()
	m.current = in
	return in, nil
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := &memStore{current: Settings{SiteName: "Acme", Currency: "USD"}}
	return &Service{Store: store, Redis: client, TTL: time.Minute}, store
}

func TestGetCachesAfterFirstLoad(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	first, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "Acme", first.SiteName)
	require.Equal(t, 1, store.gets)

	second, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, first.SiteName, second.SiteName)
	require.Equal(t, 1, store.gets, "second read must come from cache")
}

func TestUpdateRefreshesCache(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx)
	require.NoError(t, err)

	_, err = svc.Update(ctx, Settings{SiteName: "Acme 2", Currency: "EUR", Maintenance: true})
	require.NoError(t, err)

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "Acme 2", got.SiteName)
	require.True(t, got.Maintenance)
	require.Equal(t, 1, store.gets, "updated value must be served from cache")
}

func TestPublicSubsetOmitsSupportEmail(t *testing.T) {
	svc, store := newTestService(t)
	store.current.SupportEmail = "ops@acme.test"

	pub, err := svc.GetPublic(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Acme", pub.SiteName)
	require.Equal(t, "USD", pub.Currency)
}
