package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T) (CacheService, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { other.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRedisCache(client, logger), mr, other
}

func TestRedisCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c, mr, _ := newTestRedisCache(t)

	require.NoError(t, c.Set(ctx, "exam:1", counter{Value: 3}, time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("exam:1"))

	var got counter
	require.NoError(t, c.Get(ctx, "exam:1", &got))
	assert.Equal(t, 3, got.Value)

	require.NoError(t, c.Delete(ctx, "exam:1"))
	assert.ErrorIs(t, c.Get(ctx, "exam:1", &got), ErrCacheMiss)
}

func TestRedisCache_DeletePattern(t *testing.T) {
	ctx := context.Background()
	c, mr, _ := newTestRedisCache(t)

	require.NoError(t, c.Set(ctx, "exam:1", counter{Value: 1}, time.Minute))
	require.NoError(t, c.Set(ctx, "exam:2", counter{Value: 2}, time.Minute))
	require.NoError(t, c.Set(ctx, "attempt:a", counter{Value: 3}, time.Minute))

	require.NoError(t, c.DeletePattern(ctx, "exam:*"))
	assert.False(t, mr.Exists("exam:1"))
	assert.False(t, mr.Exists("exam:2"))
	assert.True(t, mr.Exists("attempt:a"))
}

func TestRedisCache_UpdateKeepsTTL(t *testing.T) {
	ctx := context.Background()
	c, mr, _ := newTestRedisCache(t)

	require.NoError(t, c.Set(ctx, "attempt:a", counter{Value: 1}, 10*time.Minute))

	var got counter
	require.NoError(t, c.Update(ctx, "attempt:a", &got, func() error {
		got.Value++
		return nil
	}))

	var stored counter
	require.NoError(t, c.Get(ctx, "attempt:a", &stored))
	assert.Equal(t, 2, stored.Value)
	assert.Equal(t, 10*time.Minute, mr.TTL("attempt:a"))
}

func TestRedisCache_UpdateMissAndAbort(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestRedisCache(t)

	var got counter
	assert.ErrorIs(t, c.Update(ctx, "attempt:missing", &got, func() error { return nil }), ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "attempt:a", counter{Value: 1}, time.Minute))
	errRejected := errors.New("rejected")
	err := c.Update(ctx, "attempt:a", &got, func() error {
		got.Value = 99
		return errRejected
	})
	assert.ErrorIs(t, err, errRejected)

	var stored counter
	require.NoError(t, c.Get(ctx, "attempt:a", &stored))
	assert.Equal(t, 1, stored.Value)
}

func TestRedisCache_UpdateRetriesAfterConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	c, _, other := newTestRedisCache(t)

	require.NoError(t, c.Set(ctx, "attempt:a", counter{Value: 1}, time.Minute))

	calls := 0
	var got counter
	require.NoError(t, c.Update(ctx, "attempt:a", &got, func() error {
		calls++
		if calls == 1 {
			require.NoError(t, other.Set(ctx, "attempt:a", `{"value":10}`, time.Minute).Err())
		}
		got.Value++
		return nil
	}))

	assert.Equal(t, 2, calls)
	var stored counter
	require.NoError(t, c.Get(ctx, "attempt:a", &stored))
	assert.Equal(t, 11, stored.Value)
}

func TestRedisCache_UpdateGivesUpWithConflict(t *testing.T) {
	ctx := context.Background()
	c, _, other := newTestRedisCache(t)

	require.NoError(t, c.Set(ctx, "attempt:a", counter{Value: 1}, time.Minute))

	calls := 0
	var got counter
	err := c.Update(ctx, "attempt:a", &got, func() error {
		calls++
		return other.Set(ctx, "attempt:a", `{"value":0}`, time.Minute).Err()
	})

	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, maxUpdateRetries, calls)

	var stored counter
	require.NoError(t, c.Get(ctx, "attempt:a", &stored))
	assert.Equal(t, 0, stored.Value)
}

func TestRedisCache_TakeOnlyOnce(t *testing.T) {
	ctx := context.Background()
	c, mr, _ := newTestRedisCache(t)

	require.NoError(t, c.Set(ctx, "attempt:a", counter{Value: 5}, time.Minute))

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		misses  atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var got counter
			err := c.Take(ctx, "attempt:a", &got)
			switch {
			case err == nil:
				winners.Add(1)
			case errors.Is(err, ErrCacheMiss):
				misses.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.Equal(t, int32(9), misses.Load())
	assert.False(t, mr.Exists("attempt:a"))
}
