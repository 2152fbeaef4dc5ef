package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache is the shared remote tier of a TieredCache.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

func InitRedisCache(ctx context.Context, redisAddress string, keyPrefix string) (*RedisCache, error) {
	rdc := redis.NewClient(&redis.Options{
		Addr:        redisAddress,
		ReadTimeout: time.Second * 5,
	})

	if err := rdc.Ping(ctx).Err(); err != nil {
		rdc.Close()
		return nil, err
	}

	return &RedisCache{
		client:    rdc,
		keyPrefix: keyPrefix,
	}, nil
}

func (cache *RedisCache) SetBytes(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return cache.client.Set(ctx, cache.keyPrefix+key, value, expiration).Err()
}

// GetBytes returns the value and its remaining ttl. A ttl of zero means the
// key does not expire.
func (cache *RedisCache) GetBytes(ctx context.Context, key string) ([]byte, time.Duration, error) {
	pipe := cache.client.Pipeline()
	getCmd := pipe.Get(ctx, cache.keyPrefix+key)
	ttlCmd := pipe.PTTL(ctx, cache.keyPrefix+key)
	_, err := pipe.Exec(ctx)
	if errors.Is(err, redis.Nil) {
		return nil, 0, ErrCacheMiss
	}
	if err != nil {
		return nil, 0, err
	}

	value, err := getCmd.Bytes()
	if err != nil {
		return nil, 0, err
	}
	ttl := ttlCmd.Val()
	if ttl < 0 {
		ttl = 0
	}
	return value, ttl, nil
}

func (cache *RedisCache) Close() error {
	return cache.client.Close()
}
