package ratelimit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	extratelimit "github.com/vnmchuo/ratelimiter"
)

type countingStore struct {
	limit int
	seen  map[string]int
	err   error
}

func (s *countingStore) AllowN(ctx context.Context, key string, n int) (*extratelimit.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.seen == nil {
		s.seen = make(map[string]int)
	}
	s.seen[key] += n
	return &extratelimit.Result{Allowed: s.seen[key] <= s.limit}, nil
}

func (s *countingStore) Allow(ctx context.Context, key string) (*extratelimit.Result, error) {
	return s.AllowN(ctx, key, 1)
}

func (s *countingStore) Status(ctx context.Context, key string) (*extratelimit.Result, error) {
	return &extratelimit.Result{Allowed: s.seen[key] < s.limit}, nil
}

func TestAllow_PerClient(t *testing.T) {
	store := &countingStore{limit: 2}
	l := NewTestLimiter(store)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 3, store.seen["ratelimit:client:alice"])
	assert.Equal(t, 1, store.seen["ratelimit:client:bob"])
}

func TestAllow_AnonymousKey(t *testing.T) {
	store := &countingStore{limit: 5}
	l := NewTestLimiter(store)

	_, err := l.Allow(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, store.seen["ratelimit:client:anonymous"])
}

func TestAllow_StoreError(t *testing.T) {
	l := NewTestLimiter(&countingStore{err: errors.New("redis down")})
	ok, err := l.Allow(context.Background(), "alice")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestAllow_NilLimiter(t *testing.T) {
	var l *Limiter
	ok, err := l.Allow(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, ok)
}
