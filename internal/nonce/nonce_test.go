package nonce

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestMemoryStoreConsume(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := NewMemoryStore(0).WithClock(clock)
	defer store.Close()
	ctx := context.Background()

	ok, err := store.Consume(ctx, "agent-a", "abc123", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = store.Consume(ctx, "agent-a", "abc123", time.Minute)
	assert.False(t, ok, "second use of a nonce is a replay")

	ok, _ = store.Consume(ctx, "agent-b", "abc123", time.Minute)
	assert.True(t, ok, "nonces are scoped per agent")

	clock.Advance(time.Minute)
	ok, _ = store.Consume(ctx, "agent-a", "abc123", time.Minute)
	assert.False(t, ok, "a nonce is still live at its expiry instant")

	clock.Advance(time.Nanosecond)
	ok, _ = store.Consume(ctx, "agent-a", "abc123", time.Minute)
	assert.True(t, ok, "expired nonces may be reused")
}

func TestMemoryStoreRemoveExpired(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := NewMemoryStore(0).WithClock(clock)
	defer store.Close()

	_, _ = store.Consume(context.Background(), "a", "1", time.Second)
	_, _ = store.Consume(context.Background(), "a", "2", time.Hour)
	clock.Advance(2 * time.Second)
	store.removeExpired()
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreConcurrent(t *testing.T) {
	store := NewMemoryStore(time.Millisecond)
	defer store.Close()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.Consume(context.Background(), "agent-a", "same", time.Minute); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryStoreCloseTwice(t *testing.T) {
	store := NewMemoryStore(time.Second)
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestRedisStoreConsume(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	ok, err := store.Consume(ctx, "agent-a", "abc123", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists(DefaultKeyPrefix+"agent-a:abc123"))
	assert.Equal(t, 10*time.Minute, mr.TTL(DefaultKeyPrefix+"agent-a:abc123"))

	ok, err = store.Consume(ctx, "agent-a", "abc123", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(11 * time.Minute)
	ok, err = store.Consume(ctx, "agent-a", "abc123", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	_, err := store.Consume(context.Background(), "agent-a", "abc123", time.Minute)
	assert.Error(t, err)
}

func TestNewBackends(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	_ = s.Close()

	mr := miniredis.RunT(t)
	s, err = New(ctx, Config{Backend: BackendRedis, Redis: RedisConfig{Addr: mr.Addr(), KeyPrefix: "test:"}})
	require.NoError(t, err)
	ok, err := s.Consume(ctx, "a", "n", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("test:a:n"))
	_ = s.Close()

	_, err = New(ctx, Config{Backend: "etcd"})
	assert.Error(t, err)
}
