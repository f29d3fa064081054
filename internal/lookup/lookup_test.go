package lookup_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-core/internal/cache"
	"github.com/ariefcatur/go-shop-core/internal/lookup"
	"github.com/ariefcatur/go-shop-core/internal/memstore"
	"github.com/ariefcatur/go-shop-core/internal/orders"
	"github.com/ariefcatur/go-shop-core/internal/redisx"
)

type countingUsers struct {
	*memstore.Users
	gets atomic.Int32
}

func (c *countingUsers) Get(ctx context.Context, id string) (orders.User, error) {
	c.gets.Add(1)
	return c.Users.Get(ctx, id)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setup(t *testing.T) (*lookup.Service[orders.User], *countingUsers, *cache.Memory, *clock) {
	t.Helper()
	store := &countingUsers{Users: memstore.NewUsers()}
	require.NoError(t, store.Save(context.Background(), orders.User{ID: "u1", Email: "a@example.com", Name: "A"}))
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := cache.NewMemoryWithClock(clk.Now)
	return lookup.New[orders.User]("user", store, c, time.Minute, zap.NewNop()), store, c, clk
}

func TestFindByIDCachesOnMiss(t *testing.T) {
	ctx := context.Background()
	svc, store, c, _ := setup(t)

	u, err := svc.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "A", u.Name)
	assert.EqualValues(t, 1, store.gets.Load())

	ok, err := c.Has(ctx, redisx.EntityKey("user", "u1"))
	require.NoError(t, err)
	assert.True(t, ok)

	for i := 0; i < 5; i++ {
		u, err = svc.FindByID(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "A", u.Name)
	}
	assert.EqualValues(t, 1, store.gets.Load(), "hits must not reach the store")
}

func TestFindByIDNotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	svc, store, c, _ := setup(t)

	_, err := svc.FindByID(ctx, "ghost")
	assert.True(t, errors.Is(err, orders.ErrNotFound))
	_, err = svc.FindByID(ctx, "ghost")
	assert.True(t, errors.Is(err, orders.ErrNotFound))

	assert.EqualValues(t, 2, store.gets.Load())
	assert.Equal(t, 0, c.Len())
}

func TestFindByIDReloadsAfterTTL(t *testing.T) {
	ctx := context.Background()
	svc, store, _, clk := setup(t)

	_, err := svc.FindByID(ctx, "u1")
	require.NoError(t, err)

	// write behind the cache's back
	require.NoError(t, store.Save(ctx, orders.User{ID: "u1", Email: "a@example.com", Name: "B"}))
	u, err := svc.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "A", u.Name, "served from cache until expiry")

	clk.Advance(time.Minute + time.Second)
	u, err = svc.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "B", u.Name)
	assert.EqualValues(t, 2, store.gets.Load())
}

func TestInvalidateAndUpdate(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _ := setup(t)

	_, err := svc.FindByID(ctx, "u1")
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "u1", func(u *orders.User) error {
		u.Name = "C"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "C", updated.Name)

	u, err := svc.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "C", u.Name)

	boom := errors.New("rejected")
	_, err = svc.Update(ctx, "u1", func(u *orders.User) error {
		u.Name = "D"
		return boom
	})
	assert.ErrorIs(t, err, boom)
	cur, err := store.Users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "C", cur.Name)

	_, err = svc.Update(ctx, "ghost", func(*orders.User) error { return nil })
	assert.True(t, errors.Is(err, orders.ErrNotFound))

	require.NoError(t, svc.Invalidate(ctx, "u1"))
	require.NoError(t, svc.Invalidate(ctx, "never-cached"))
}

func TestFindByIDDropsCorruptEntry(t *testing.T) {
	ctx := context.Background()
	svc, store, c, _ := setup(t)

	require.NoError(t, c.Set(ctx, redisx.EntityKey("user", "u1"), []byte("{broken"), time.Minute))

	u, err := svc.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "A", u.Name)
	assert.EqualValues(t, 1, store.gets.Load())
}

type brokenCache struct{ cache.Cache }

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func TestFindByIDSurfacesCacheErrors(t *testing.T) {
	store := memstore.NewUsers()
	svc := lookup.New[orders.User]("user", store, brokenCache{cache.NewMemory()}, 0, zap.NewNop())

	_, err := svc.FindByID(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
