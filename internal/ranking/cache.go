package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "gzbot:rankings:"

// RedisCache keeps leaderboards in Redis with a fixed TTL.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]Entry, bool, error) {
	data, err := c.rdb.Get(ctx, cacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false, err
	}
	return entries, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cacheKeyPrefix+key, data, c.ttl).Err()
}
