package cache_test

import (
	"context"
	"testing"
	"time"

	"ledger_system/internal/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	ID      uint   `json:"id"`
	Balance string `json:"balance"`
}

func newCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.New(rdb, time.Minute), mr
}

func TestSetGetDelete(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	var got entry
	hit, err := c.Get(ctx, cache.AccountKey(1), &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, cache.AccountKey(1), entry{ID: 1, Balance: "500"}))
	hit, err = c.Get(ctx, cache.AccountKey(1), &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, entry{ID: 1, Balance: "500"}, got)

	require.NoError(t, c.Delete(ctx, cache.AccountKey(1), cache.SubAccountsKey(1)))
	hit, err = c.Get(ctx, cache.AccountKey(1), &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestEntriesExpire(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, cache.SubAccountKey(3), entry{ID: 3}))

	mr.FastForward(2 * time.Minute)
	var got entry
	hit, err := c.Get(ctx, cache.SubAccountKey(3), &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestNilCacheNeverHits(t *testing.T) {
	var c *cache.Cache
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", entry{}))
	hit, err := c.Get(ctx, "k", &entry{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, c.Delete(ctx, "k"))
}

func TestUnavailableRedisReportsError(t *testing.T) {
	c, mr := newCache(t)
	mr.Close()
	_, err := c.Get(context.Background(), cache.AccountKey(1), &entry{})
	assert.Error(t, err)
}
