package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type backend struct {
	name     string
	registry Registry
	advance  func(time.Duration)
}

func backends(t *testing.T) []backend {
	t.Helper()
	const ttl = 30 * time.Second

	memClock := &clock{now: time.Unix(1_700_000_000, 0)}
	mem := NewMemoryRegistry(ttl).WithClock(memClock.Now)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	redisClock := &clock{now: time.Unix(1_700_000_000, 0)}
	rr := NewRedisRegistry(client, "test", ttl)
	rr.now = redisClock.Now

	return []backend{
		{name: "Memory", registry: mem, advance: memClock.Advance},
		{name: "Redis", registry: rr, advance: func(d time.Duration) {
			redisClock.Advance(d)
			mr.FastForward(d)
		}},
	}
}

func TestRegistry_BindAndLookup(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			r := b.registry
			require.NoError(t, r.Bind(ctx, "c1", "alice"))
			require.NoError(t, r.Bind(ctx, "c2", "alice"))
			require.NoError(t, r.Bind(ctx, "c3", "bob"))

			sockets, err := r.SocketsFor(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, []string{"c1", "c2"}, sockets)

			conn, ok, err := r.AnySocketFor(ctx, "bob")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "c3", conn)

			_, ok, err = r.AnySocketFor(ctx, "carol")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, r.Unbind(ctx, "c1"))
			assert.ErrorIs(t, r.Unbind(ctx, "c1"), ErrUnknownConnection)

			sockets, err = r.SocketsFor(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, []string{"c2"}, sockets)
		})
	}
}

func TestRegistry_RebindMovesConnection(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			r := b.registry
			require.NoError(t, r.Bind(ctx, "c1", "alice"))
			require.NoError(t, r.Bind(ctx, "c1", "bob"))

			sockets, err := r.SocketsFor(ctx, "alice")
			require.NoError(t, err)
			assert.Empty(t, sockets)

			sockets, err = r.SocketsFor(ctx, "bob")
			require.NoError(t, err)
			assert.Equal(t, []string{"c1"}, sockets)
		})
	}
}

func TestRegistry_ExpiryAndSweep(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			r := b.registry

			var (
				mu      sync.Mutex
				expired = map[string]string{}
			)
			r.OnExpire(func(connID, userID string) {
				mu.Lock()
				defer mu.Unlock()
				expired[connID] = userID
			})

			require.NoError(t, r.Bind(ctx, "stale", "alice"))
			require.NoError(t, r.Bind(ctx, "live", "alice"))

			b.advance(20 * time.Second)
			require.NoError(t, r.Bind(ctx, "live", "alice"))
			b.advance(20 * time.Second)

			sockets, err := r.SocketsFor(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, []string{"live"}, sockets, "expired bindings are not delivered to")

			ids, err := r.Sweep(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"stale"}, ids)
			assert.Equal(t, map[string]string{"stale": "alice"}, expired)

			ids, err = r.Sweep(ctx)
			require.NoError(t, err)
			assert.Empty(t, ids)

			assert.ErrorIs(t, r.Unbind(ctx, "stale"), ErrUnknownConnection)
			require.NoError(t, r.Unbind(ctx, "live"))
		})
	}
}

func TestMemoryRegistry_Len(t *testing.T) {
	r := NewMemoryRegistry(time.Minute)
	require.NoError(t, r.Bind(context.Background(), "c1", "alice"))
	assert.Equal(t, 1, r.Len())
}
