package trading

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseLocker checks mutual exclusion on one account and independence of
// different accounts.
func exerciseLocker(t *testing.T, locker AccountLocker) {
	t.Helper()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, 1)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)

	unlockA, err := locker.Lock(ctx, 10)
	require.NoError(t, err)
	defer unlockA()

	ctxB, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	unlockB, err := locker.Lock(ctxB, 11)
	require.NoError(t, err, "different accounts must not block each other")
	unlockB()
}

func TestLocalLocker(t *testing.T) {
	locker := NewLocalLocker()
	exerciseLocker(t, locker)
}

func TestLocalLocker_ContextCancelledWhileWaiting(t *testing.T) {
	locker := NewLocalLocker()
	unlock, err := locker.Lock(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // second call is a no-op
	assert.Equal(t, 0, locker.size())

	unlock, err = locker.Lock(context.Background(), 1)
	require.NoError(t, err)
	unlock()
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("STOCKFOLIO_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STOCKFOLIO_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(context.Background()).Err())

	locker := NewRedisLocker(client, 5*time.Second, zerolog.Nop())
	locker.keyPrefix = "stockfolio:test:" + t.Name() + ":"
	exerciseLocker(t, locker)
}

func TestRedisLocker_ExpiredLockIsNotStolenBack(t *testing.T) {
	addr := os.Getenv("STOCKFOLIO_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STOCKFOLIO_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	locker := NewRedisLocker(client, 50*time.Millisecond, zerolog.Nop())
	locker.keyPrefix = "stockfolio:test:" + t.Name() + ":"

	unlockFirst, err := locker.Lock(ctx, 1)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	unlockSecond, err := locker.Lock(ctx, 1)
	require.NoError(t, err)

	// Releasing the expired first lock must leave the second in place.
	unlockFirst()
	exists, err := client.Exists(ctx, locker.key(1)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
	unlockSecond()
}
