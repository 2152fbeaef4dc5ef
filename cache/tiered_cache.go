package cache

import (
	"context"
	"errors"
	"time"

	"github.com/coocood/freecache"
	"github.com/sirupsen/logrus"
)

// TieredCache combines a local in-memory cache with an optional redis cache
// shared between instances.
type TieredCache struct {
	localCache  *freecache.Cache
	remoteCache *RedisCache
	logger      logrus.FieldLogger
}

var ErrCacheMiss = errors.New("cache miss")

// NewTieredCache creates a cache with cacheSize bytes of local memory. The
// remote tier is only used when redisAddress is set.
func NewTieredCache(cacheSize int, redisAddress string, redisPrefix string, logger logrus.FieldLogger) (*TieredCache, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	cache := &TieredCache{
		localCache: freecache.NewCache(cacheSize),
		logger:     logger.WithField("module", "cache"),
	}

	if redisAddress != "" {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		remoteCache, err := InitRedisCache(ctx, redisAddress, redisPrefix)
		if err != nil {
			return nil, err
		}
		cache.remoteCache = remoteCache
	}

	return cache, nil
}

// localExpiry converts expiration to freecache seconds. freecache treats 0 as
// no expiry, so sub-second values are rounded up.
func localExpiry(expiration time.Duration) int {
	if expiration <= 0 {
		return 0
	}
	seconds := int(expiration.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

func (cache *TieredCache) SetBytes(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	if err := cache.localCache.Set([]byte(key), value, localExpiry(expiration)); err != nil {
		return err
	}

	if cache.remoteCache != nil {
		return cache.remoteCache.SetBytes(ctx, key, value, expiration)
	}
	return nil
}

// GetBytes looks up key locally, then remotely. Remote hits are copied to the
// local cache for their remaining ttl.
func (cache *TieredCache) GetBytes(ctx context.Context, key string) ([]byte, error) {
	value, err := cache.localCache.Get([]byte(key))
	if err == nil {
		return value, nil
	}

	if cache.remoteCache == nil {
		return nil, ErrCacheMiss
	}

	value, ttl, err := cache.remoteCache.GetBytes(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			cache.logger.Warnf("error reading remote cache: %v", err)
		}
		return nil, ErrCacheMiss
	}

	if err := cache.localCache.Set([]byte(key), value, localExpiry(ttl)); err != nil {
		cache.logger.Debugf("could not copy remote value to local cache: %v", err)
	}
	return value, nil
}

func (cache *TieredCache) EntryCount() int64 {
	return cache.localCache.EntryCount()
}

func (cache *TieredCache) Close() error {
	if cache.remoteCache != nil {
		return cache.remoteCache.Close()
	}
	return nil
}
