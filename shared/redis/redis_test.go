package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestTieredCache_LocalHitSkipsRedis(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	cache := NewTieredCache[cachedThing]("thing", rdb, TieredOptions{Size: 10, LocalTTL: time.Minute, RedisTTL: time.Hour})

	cache.Set(ctx, "t-1", &cachedThing{ID: "t-1", Name: "local"})
	require.True(t, mr.Exists("thing:view:t-1"))

	raw, err := json.Marshal(cachedThing{ID: "t-1", Name: "changed in redis"})
	require.NoError(t, err)
	require.NoError(t, mr.Set("thing:view:t-1", string(raw)))

	v, ok := cache.Get(ctx, "t-1")
	require.True(t, ok)
	assert.Equal(t, "local", v.Name)
}

func TestTieredCache_RedisHitFillsLocal(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	writer := NewTieredCache[cachedThing]("thing", rdb, TieredOptions{Size: 10, LocalTTL: time.Minute, RedisTTL: time.Hour})
	reader := NewTieredCache[cachedThing]("thing", rdb, TieredOptions{Size: 10, LocalTTL: time.Minute, RedisTTL: time.Hour})

	writer.Set(ctx, "t-1", &cachedThing{ID: "t-1", Name: "shared"})
	assert.Equal(t, time.Hour, mr.TTL("thing:view:t-1"))

	v, ok := reader.Get(ctx, "t-1")
	require.True(t, ok)
	assert.Equal(t, "shared", v.Name)
	assert.Equal(t, 1, reader.Len())

	mr.Del("thing:view:t-1")
	v, ok = reader.Get(ctx, "t-1")
	require.True(t, ok, "second read is served locally")
	assert.Equal(t, "shared", v.Name)
}

func TestTieredCache_RedisDownIsAMiss(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	cache := NewTieredCache[cachedThing]("thing", rdb, TieredOptions{Size: 10, LocalTTL: time.Minute})
	mr.Close()

	_, ok := cache.Get(ctx, "t-1")
	assert.False(t, ok)

	loads := 0
	v, err := cache.GetOrLoad(ctx, "t-1", func(context.Context) (*cachedThing, error) {
		loads++
		return &cachedThing{ID: "t-1", Name: "from db"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "from db", v.Name)
	assert.Equal(t, 1, loads)
}

func TestTieredCache_DeleteAndPurgeReachRedis(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	things := NewTieredCache[cachedThing]("thing", rdb, TieredOptions{Size: 10, LocalTTL: time.Minute})
	others := NewTieredCache[cachedThing]("other", rdb, TieredOptions{Size: 10, LocalTTL: time.Minute})

	things.Set(ctx, "a", &cachedThing{ID: "a"})
	things.Set(ctx, "b", &cachedThing{ID: "b"})
	things.Set(ctx, "c", &cachedThing{ID: "c"})
	others.Set(ctx, "a", &cachedThing{ID: "a"})

	things.Delete(ctx, "a")
	assert.False(t, mr.Exists("thing:view:a"))
	assert.True(t, mr.Exists("thing:view:b"))

	things.Purge(ctx)
	assert.False(t, mr.Exists("thing:view:b"))
	assert.False(t, mr.Exists("thing:view:c"))
	assert.True(t, mr.Exists("other:view:a"), "purge only touches its own keys")
	assert.Equal(t, 0, things.Len())
	assert.Equal(t, 1, others.Len())
}

func TestViewCache_DeletePrefixLargeKeyspace(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	cache := NewViewCache[cachedThing](rdb, 0)

	for i := 0; i < 450; i++ {
		require.NoError(t, mr.Set(fmt.Sprintf("bulk:view:%d", i), "{}"))
	}
	require.NoError(t, mr.Set("keep:view:1", "{}"))

	cache.DeletePrefix(ctx, "bulk:")
	assert.Equal(t, []string{"keep:view:1"}, mr.Keys())
}

func TestViewCache_CorruptValueIsAMiss(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	cache := NewViewCache[cachedThing](rdb, 0)
	require.NoError(t, mr.Set("thing:view:x", "{not json"))

	_, ok := cache.Get(ctx, "thing:view:x")
	assert.False(t, ok)
}

func TestClient_LockUnlock(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client, err := NewClient(ctx, Options{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	ok, err := client.Lock(ctx, "lock:x", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.Lock(ctx, "lock:x", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held lock is not granted twice")

	require.NoError(t, client.Unlock(ctx, "lock:x"))
	ok, err = client.Lock(ctx, "lock:x", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(time.Minute)
	ok, err = client.Lock(ctx, "lock:x", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lock expires after its ttl")
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(context.Background(), Options{Addr: addr})
	require.Error(t, err)
}
