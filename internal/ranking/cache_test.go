package ranking

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisCache(rdb, ttl), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	cache, mr := newTestCache(t, 10*time.Second)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "5:")
	require.NoError(t, err)
	assert.False(t, ok, "empty cache reported a hit")

	want := []Entry{
		{Rank: 1, TeamID: 10, TeamName: "Alpha", Score: 300, LastSolve: at(10, 5), Members: []string{"2023001"}},
		{Rank: 2, TeamID: 11, TeamName: "Beta", Score: 100, LastSolve: at(9, 30)},
	}
	require.NoError(t, cache.Set(ctx, "5:", want))

	got, ok, err := cache.Get(ctx, "5:")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.Equal(t, 10*time.Second, mr.TTL(cacheKeyPrefix+"5:"))

	mr.FastForward(11 * time.Second)
	_, ok, err = cache.Get(ctx, "5:")
	require.NoError(t, err)
	assert.False(t, ok, "entry survived its TTL")
}

func TestRedisCacheCorruptValue(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	require.NoError(t, mr.Set(cacheKeyPrefix+"5:", "not json"))

	_, ok, err := cache.Get(context.Background(), "5:")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRedisCacheUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer rdb.Close()
	cache := NewRedisCache(rdb, time.Minute)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "5:")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, cache.Set(ctx, "5:", []Entry{{Rank: 1, TeamID: 10}}))
}
