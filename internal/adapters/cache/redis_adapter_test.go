package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmacyonduty/backend/internal/adapters/cache"
	"github.com/pharmacyonduty/backend/internal/domain/providers"
	redisclient "github.com/pharmacyonduty/backend/internal/infrastructure/clients/redis"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, providers.CacheProvider) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, cache.NewRedisAdapter(redisclient.Wrap(client))
}

func TestRedisAdapter_GetSet(t *testing.T) {
	ctx := context.Background()
	mr, adapter := setupRedis(t)

	value, err := adapter.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, value)

	require.NoError(t, adapter.Set(ctx, "city:39.7767,30.5206", []byte("Eskişehir"), time.Minute))
	value, err = adapter.Get(ctx, "city:39.7767,30.5206")
	require.NoError(t, err)
	assert.Equal(t, "Eskişehir", string(value))

	mr.FastForward(2 * time.Minute)
	value, err = adapter.Get(ctx, "city:39.7767,30.5206")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestRedisAdapter_SetWithoutExpiration(t *testing.T) {
	ctx := context.Background()
	mr, adapter := setupRedis(t)

	require.NoError(t, adapter.Set(ctx, "k", []byte("v"), 0))
	assert.Equal(t, time.Duration(0), mr.TTL("k"))
}

func TestRedisAdapter_DeletePattern(t *testing.T) {
	ctx := context.Background()
	mr, adapter := setupRedis(t)

	for _, key := range []string{"memo:city:a", "memo:city:b", "memo:travel:a"} {
		require.NoError(t, mr.Set(key, "x"))
	}

	require.NoError(t, adapter.DeletePattern(ctx, "memo:city:*"))
	assert.False(t, mr.Exists("memo:city:a"))
	assert.False(t, mr.Exists("memo:city:b"))
	assert.True(t, mr.Exists("memo:travel:a"))

	require.NoError(t, adapter.Delete(ctx, "memo:travel:a"))
	assert.False(t, mr.Exists("memo:travel:a"))
}

func TestRedisAdapter_ConnectionFailure(t *testing.T) {
	mr, adapter := setupRedis(t)
	mr.Close()

	_, err := adapter.Get(context.Background(), "k")
	assert.Error(t, err)
}
