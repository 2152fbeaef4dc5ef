package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTieredCacheLocal(t *testing.T) {
	cache, err := NewTieredCache(1024*1024, "", "", nil)
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	_, err = cache.GetBytes(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cache.SetBytes(ctx, "key", []byte("value"), time.Minute))
	value, err := cache.GetBytes(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), value)
	assert.Equal(t, int64(1), cache.EntryCount())
}

func TestLocalExpiry(t *testing.T) {
	assert.Equal(t, 0, localExpiry(0))
	assert.Equal(t, 1, localExpiry(200*time.Millisecond))
	assert.Equal(t, 12, localExpiry(12*time.Second))
}

func TestTieredCacheRedisUnavailable(t *testing.T) {
	_, err := NewTieredCache(1024*1024, "127.0.0.1:1", "test:", nil)
	assert.Error(t, err)
}
