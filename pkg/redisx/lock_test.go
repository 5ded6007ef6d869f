package redisx

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) Redis {
	t.Helper()
	rdb, err := NewRedis(RedisConfig{RedisType: "miniredis"})
	require.NoError(t, err)
	return rdb
}

func TestTryLockAndUnlock(t *testing.T) {
	t.Parallel()
	rdb := newTestRedis(t)
	ctx := context.Background()

	lock := NewDistributedLock(rdb, LockOptions{Key: "test:lock"})
	acquired, err := lock.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	// A second holder cannot take the same key.
	other := NewDistributedLock(rdb, LockOptions{Key: "test:lock"})
	acquired, err = other.TryLock(ctx)
	require.NoError(t, err)
	require.False(t, acquired)

	require.NoError(t, lock.Unlock(ctx))

	acquired, err = other.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, acquired)
}

func TestUnlockOnlyReleasesOwnLock(t *testing.T) {
	t.Parallel()
	rdb := newTestRedis(t)
	ctx := context.Background()

	holder := NewDistributedLock(rdb, LockOptions{Key: "test:lock", Value: "holder"})
	acquired, err := holder.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	intruder := NewDistributedLock(rdb, LockOptions{Key: "test:lock", Value: "intruder"})
	require.Error(t, intruder.Unlock(ctx))

	require.NoError(t, holder.Unlock(ctx))
}

func TestLockRetriesThenFails(t *testing.T) {
	t.Parallel()
	rdb := newTestRedis(t)
	ctx := context.Background()

	holder := NewDistributedLock(rdb, LockOptions{Key: "test:lock"})
	acquired, err := holder.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	waiter := NewDistributedLock(rdb, LockOptions{
		Key:           "test:lock",
		MaxRetryCount: 2,
		RetryInterval: 5 * time.Millisecond,
	})
	require.Error(t, waiter.Lock(ctx))
}

func TestExecuteWithLockSerializes(t *testing.T) {
	t.Parallel()
	rdb := newTestRedis(t)
	ctx := context.Background()

	const workers = 8
	var counter int
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock := NewDistributedLock(rdb, LockOptions{
				Key:           "test:serialize",
				MaxRetryCount: 100,
				RetryInterval: 2 * time.Millisecond,
			})
			err := lock.ExecuteWithLock(ctx, func() error {
				// Unsynchronized on purpose: the lock is the only guard.
				v := counter
				time.Sleep(time.Millisecond)
				counter = v + 1
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, workers, counter)
}
