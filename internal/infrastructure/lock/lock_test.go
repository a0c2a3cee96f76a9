package lock

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastMemoryLocker() *MemoryLocker {
	l := NewMemoryLocker()
	l.interval = time.Millisecond
	l.attempts = 3
	return l
}

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("second obtain fails while held", func(t *testing.T) {
		l := fastMemoryLocker()
		held, err := l.Obtain(ctx, "k", time.Minute)
		require.NoError(t, err)

		_, err = l.Obtain(ctx, "k", time.Minute)
		assert.ErrorIs(t, err, ErrNotObtained)

		require.NoError(t, held.Release(ctx))
		again, err := l.Obtain(ctx, "k", time.Minute)
		require.NoError(t, err)
		require.NoError(t, again.Release(ctx))
	})

	t.Run("expired holds are taken over", func(t *testing.T) {
		l := fastMemoryLocker()
		stale, err := l.Obtain(ctx, "k", time.Millisecond)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)

		fresh, err := l.Obtain(ctx, "k", time.Minute)
		require.NoError(t, err)

		// releasing the stale hold must not free the new owner
		require.NoError(t, stale.Release(ctx))
		_, err = l.Obtain(ctx, "k", time.Minute)
		assert.ErrorIs(t, err, ErrNotObtained)
		require.NoError(t, fresh.Release(ctx))
	})

	t.Run("cancelled context", func(t *testing.T) {
		l := NewMemoryLocker()
		_, err := l.Obtain(ctx, "k", time.Minute)
		require.NoError(t, err)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err = l.Obtain(cctx, "k", time.Minute)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestGuard(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	var inside atomic.Int32
	var maxInside atomic.Int32
	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := Guard(ctx, l, "shared", time.Minute, func(context.Context) error {
				n := inside.Add(1)
				if n > maxInside.Load() {
					maxInside.Store(n)
				}
				time.Sleep(5 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())

	boom := errors.New("boom")
	err := Guard(ctx, l, "shared", time.Minute, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	// released after an error
	held, err := l.Obtain(ctx, "shared", time.Minute)
	require.NoError(t, err)
	require.NoError(t, held.Release(ctx))
}

// TestRedisLocker runs against a live server when BFF_TEST_REDIS_ADDR is set.
func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("BFF_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BFF_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	l := NewRedisLocker(client)
	key := "test:" + t.Name()

	held, err := l.Obtain(ctx, key, time.Second)
	require.NoError(t, err)

	shortCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_, err = l.Obtain(shortCtx, key, time.Second)
	assert.Error(t, err)

	require.NoError(t, held.Release(ctx))
	require.NoError(t, held.Release(ctx))
}
