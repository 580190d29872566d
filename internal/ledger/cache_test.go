package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), srv
}

func TestCacheVersionInitialises(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	ver, err := cache.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)

	require.NoError(t, cache.Bump(ctx))
	ver, err = cache.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), ver)
}

func TestCacheBumpChangesKeys(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	before, err := cache.BuildKey(ctx, "stock", "1")
	require.NoError(t, err)

	require.NoError(t, cache.Bump(ctx))

	after, err := cache.BuildKey(ctx, "stock", "1")
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestCacheFetchJSONUsesLoaderOnce(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "stock", "1")
	require.NoError(t, err)

	calls := 0
	loader := func(ctx context.Context) (any, error) {
		calls++
		return []StockView{{ProductID: 2, Quantity: 7}}, nil
	}

	var views []StockView
	require.NoError(t, cache.FetchJSON(ctx, key, &views, loader))
	require.Len(t, views, 1)
	require.Equal(t, 1, calls)

	views = nil
	require.NoError(t, cache.FetchJSON(ctx, key, &views, loader))
	require.Len(t, views, 1)
	require.Equal(t, int64(7), views[0].Quantity)
	require.Equal(t, 1, calls, "second fetch must come from cache")
}

func TestCacheFetchJSONAfterBumpReloads(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(ctx context.Context) (any, error) {
		calls++
		return []StockView{{ProductID: 2, Quantity: int64(10 - calls)}}, nil
	}

	key, err := cache.BuildKey(ctx, "stock", "1")
	require.NoError(t, err)
	var views []StockView
	require.NoError(t, cache.FetchJSON(ctx, key, &views, loader))
	require.Equal(t, int64(9), views[0].Quantity)

	require.NoError(t, cache.Bump(ctx))

	key, err = cache.BuildKey(ctx, "stock", "1")
	require.NoError(t, err)
	require.NoError(t, cache.FetchJSON(ctx, key, &views, loader))
	require.Equal(t, int64(8), views[0].Quantity)
	require.Equal(t, 2, calls)
}

func TestCacheNilClientBypasses(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	var views []StockView
	err := cache.FetchJSON(ctx, "stock:1", &views, func(ctx context.Context) (any, error) {
		return []StockView{{ProductID: 2, Quantity: 3}}, nil
	})
	require.NoError(t, err)
	require.Len(t, views, 1)
}
