package apikey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache backs the key cache with Redis instead of an in-process
// map, so multiple daemon replicas share one cache and a revoke on one
// replica invalidates the key for every replica reading the same
// instance (spec §5, RedisAddr doc in config.AuthConfig).
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to addr/db with the given password (empty for
// none) and TTL. The connection is lazy; redis-go dials on first use.
func NewRedisCache(addr, password string, db int, ttl time.Duration) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{client: client, ttl: ttl}
}

func redisKey(prefix string) string {
	return fmt.Sprintf("agentlens:apikey:%s", prefix)
}

func (c *RedisCache) Get(ctx context.Context, prefix string) (Key, bool) {
	raw, err := c.client.Get(ctx, redisKey(prefix)).Bytes()
	if errors.Is(err, redis.Nil) || err != nil {
		return Key{}, false
	}
	var k Key
	if err := json.Unmarshal(raw, &k); err != nil {
		return Key{}, false
	}
	return k, true
}

func (c *RedisCache) Set(ctx context.Context, k Key) {
	raw, err := json.Marshal(k)
	if err != nil {
		return
	}
	c.client.Set(ctx, redisKey(k.Prefix), raw, c.ttl)
}

func (c *RedisCache) Invalidate(ctx context.Context, prefix string) {
	c.client.Del(ctx, redisKey(prefix))
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
