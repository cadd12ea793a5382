package redisx

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-cosmetics-orders/internal/orders"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestLockerExclusive(t *testing.T) {
	t.Parallel()
	mr, rdb := newRedis(t)
	l := NewLocker(rdb, 30*time.Second)
	ctx := context.Background()
	key := fmt.Sprintf(KeyCheckoutLock, "alice")

	release, err := l.Acquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 30*time.Second, mr.TTL(key))

	_, err = l.Acquire(ctx, key)
	assert.ErrorIs(t, err, orders.ErrLockBusy)

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists(key))

	_, err = l.Acquire(ctx, key)
	assert.NoError(t, err)
}

func TestLockerReleaseKeepsForeignLock(t *testing.T) {
	t.Parallel()
	mr, rdb := newRedis(t)
	l := NewLocker(rdb, time.Second)
	ctx := context.Background()
	key := fmt.Sprintf(KeyOrderLock, "o1")

	release, err := l.Acquire(ctx, key)
	require.NoError(t, err)

	// our lease ran out and someone else took the key
	mr.FastForward(2 * time.Second)
	_, err = l.Acquire(ctx, key)
	require.NoError(t, err)
	holder, _ := mr.Get(key)

	require.NoError(t, release(ctx))
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, holder, got)
}

func TestStatusCache(t *testing.T) {
	t.Parallel()
	mr, rdb := newRedis(t)
	c := NewStatusCache(rdb)
	ctx := context.Background()

	_, ok := c.Get(ctx, "o1")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "o1", "Shipped", time.Now()))
	s, ok := c.Get(ctx, "o1")
	require.True(t, ok)
	assert.Equal(t, "Shipped", s)
	assert.Equal(t, TTLStatusCache, mr.TTL(fmt.Sprintf(KeyOrderStatus, "o1")))

	require.NoError(t, c.Invalidate(ctx, "o1"))
	_, ok = c.Get(ctx, "o1")
	assert.False(t, ok)
	require.NoError(t, c.Invalidate(ctx, "never-cached"))

	require.NoError(t, mr.Set(fmt.Sprintf(KeyOrderStatus, "o2"), "legacy string entry"))
	_, ok = c.Get(ctx, "o2")
	assert.False(t, ok)
}

func TestStatusCacheKeepsNewerEntry(t *testing.T) {
	t.Parallel()
	_, rdb := newRedis(t)
	c := NewStatusCache(rdb)
	ctx := context.Background()
	placed := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	shipped := placed.Add(time.Hour)

	require.NoError(t, c.Set(ctx, "o1", "Shipped", shipped))
	// a reader that loaded the order before the transition finishes late
	require.NoError(t, c.Set(ctx, "o1", "Order Placed", placed))
	s, ok := c.Get(ctx, "o1")
	require.True(t, ok)
	assert.Equal(t, "Shipped", s)

	require.NoError(t, c.Set(ctx, "o1", "Shipped", shipped))
	require.NoError(t, c.Set(ctx, "o1", "Completed", shipped.Add(time.Minute)))
	s, _ = c.Get(ctx, "o1")
	assert.Equal(t, "Completed", s)
}

func TestMarkOnce(t *testing.T) {
	t.Parallel()
	mr, rdb := newRedis(t)
	ctx := context.Background()
	key := fmt.Sprintf(KeyDedup, "notifier", "evt-1")

	first, err := MarkOnce(ctx, rdb, key, TTLDedup)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = MarkOnce(ctx, rdb, key, TTLDedup)
	require.NoError(t, err)
	assert.False(t, first)

	assert.True(t, mr.Exists(key))

	mr.FastForward(TTLDedup + time.Second)
	first, err = MarkOnce(ctx, rdb, key, TTLDedup)
	require.NoError(t, err)
	assert.True(t, first)
}

func TestPushDirectory(t *testing.T) {
	t.Parallel()
	_, rdb := newRedis(t)
	d := NewPushDirectory(rdb)
	ctx := context.Background()

	ep, err := d.PushEndpoint(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, ep)

	require.NoError(t, d.SetPushEndpoint(ctx, "alice", "https://push.example/a"))
	ep, err = d.PushEndpoint(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "https://push.example/a", ep)

	require.NoError(t, d.SetPushEndpoint(ctx, "alice", ""))
	ep, err = d.PushEndpoint(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, ep)
}

func TestRedisDownSurfacesError(t *testing.T) {
	t.Parallel()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := New(mr.Addr())
	defer rdb.Close()
	mr.Close()

	_, err = NewLocker(rdb, time.Second).Acquire(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, orders.ErrLockBusy)
}
