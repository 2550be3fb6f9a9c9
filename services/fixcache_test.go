package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkFixCache(t *testing.T, cache FixCache) {
	ctx := context.Background()
	user := uuid.NewString()

	_, ok, err := cache.Last(ctx, user)
	require.NoError(t, err)
	assert.False(t, ok)

	fix := LastFix{Latitude: paris.Latitude, Longitude: paris.Longitude, RecordedAt: t0}
	require.NoError(t, cache.Remember(ctx, user, fix))

	got, ok, err := cache.Last(ctx, user)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fix.Latitude, got.Latitude)
	assert.Equal(t, fix.Longitude, got.Longitude)
	assert.True(t, got.RecordedAt.Equal(t0))
}

func TestMemoryFixCache(t *testing.T) {
	checkFixCache(t, NewMemoryFixCache())
}

// Требует запущенный Redis (REDIS_ADDR, по умолчанию localhost:6379)
func TestRedisFixCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis is not available: %v", err)
	}

	cache := NewRedisFixCache(client)
	checkFixCache(t, cache)
}
