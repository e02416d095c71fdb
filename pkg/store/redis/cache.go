package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const DashboardKey = "isassess:dashboard:stats"

// JSONCache stores one JSON document under a fixed key with a TTL.
type JSONCache struct {
	rdb redis.UniversalClient
	key string
	ttl time.Duration
}

func NewJSONCache(c *Client, key string, ttl time.Duration) *JSONCache {
	return &JSONCache{rdb: c.rdb, key: key, ttl: ttl}
}

func (c *JSONCache) Get(ctx context.Context, dest interface{}) (bool, error) {
	data, err := c.rdb.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *JSONCache) Set(ctx context.Context, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key, data, c.ttl).Err()
}

func (c *JSONCache) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, c.key).Err()
}
