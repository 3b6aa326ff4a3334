package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemoryStore()
	m.now = clock.Now
	return m, clock
}

func TestKey_Deterministic(t *testing.T) {
	a := Key("What is React?", "tutor", map[string]any{"temperature": 0.7, "maxTokens": 500})
	b := Key("  What is React?  ", "tutor", map[string]any{"maxTokens": 500, "temperature": 0.7})
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, Key("What is React?", "", map[string]any{"temperature": 0.7, "maxTokens": 500}))
	assert.NotEqual(t, a, Key("What is React?", "tutor", map[string]any{"temperature": 0.2, "maxTokens": 500}))
	assert.Len(t, a, 64)
}

func TestMemoryStore_GetPut(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestStore()

	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, m.Put(ctx, "k", "v", time.Minute))
	v, ok := m.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	clock.Advance(time.Minute)
	_, ok = m.Get(ctx, "k")
	assert.False(t, ok)

	m.mu.Lock()
	_, present := m.entries["k"]
	m.mu.Unlock()
	assert.False(t, present, "stale entry should be evicted on read")
}

func TestMemoryStore_OverwriteResetsExpiry(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestStore()

	require.NoError(t, m.Put(ctx, "k", "old", time.Minute))
	clock.Advance(50 * time.Second)
	require.NoError(t, m.Put(ctx, "k", "new", time.Minute))
	clock.Advance(50 * time.Second)

	v, ok := m.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "new", v)
}

func TestMemoryStore_ClearReturnsCount(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestStore()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, m.Put(ctx, k, k, time.Minute))
	}
	n, err := m.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, m.Len(ctx))

	_, ok := m.Get(ctx, "a")
	assert.False(t, ok)
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestStore()

	require.NoError(t, m.Put(ctx, "short", "v", 10*time.Second))
	require.NoError(t, m.Put(ctx, "long", "v", time.Hour))
	clock.Advance(time.Minute)

	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len(ctx))
}

func TestMemoryStore_DefaultTTL(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestStore()

	require.NoError(t, m.Put(ctx, "k", "v", 0))
	clock.Advance(DefaultTTL - time.Second)
	_, ok := m.Get(ctx, "k")
	assert.True(t, ok)
}

func TestRunJanitor_StopsOnCancel(t *testing.T) {
	m := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunJanitor(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb, "lms-assistant-test:"), mr
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	require.NoError(t, s.Put(ctx, "a", "1", time.Minute))
	require.NoError(t, s.Put(ctx, "b", "2", time.Minute))
	require.NoError(t, mr.Set("unrelated", "x"))

	v, ok := s.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, 2, s.Len(ctx))

	n, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, ok = s.Get(ctx, "a")
	assert.False(t, ok)
	assert.True(t, mr.Exists("unrelated"), "clear only touches prefixed keys")
}

func TestRedisStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	require.NoError(t, s.Put(ctx, "a", "1", 30*time.Second))
	assert.Equal(t, 30*time.Second, mr.TTL("lms-assistant-test:a"))

	mr.FastForward(31 * time.Second)
	_, ok := s.Get(ctx, "a")
	assert.False(t, ok)
}

func TestRedisStore_DefaultTTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	require.NoError(t, s.Put(ctx, "a", "1", 0))
	assert.Equal(t, DefaultTTL, mr.TTL("lms-assistant-test:a"))
}

func TestRedisStore_ClearManyKeys(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t)

	for i := 0; i < 250; i++ {
		require.NoError(t, s.Put(ctx, fmt.Sprintf("k%d", i), "v", time.Minute))
	}
	n, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 250, n)
	assert.Equal(t, 0, s.Len(ctx))
}
