package dirlock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock_SameDirectoryIsExclusive(t *testing.T) {
	var l Locker
	var active, maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Do(context.Background(), "/build/obj", func() error {
				n := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxActive)
}

func TestLock_DifferentDirectoriesDoNotBlock(t *testing.T) {
	var l Locker
	unlockA, err := l.Lock(context.Background(), "/a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, "/b")
	require.NoError(t, err)
	unlockB()
}

func TestLock_CleanedPathsShareLock(t *testing.T) {
	var l Locker
	unlock, err := l.Lock(context.Background(), "/a/b")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "/a/./b/")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLock_WaitsForUnlock(t *testing.T) {
	var l Locker
	unlock, err := l.Lock(context.Background(), "/a")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, err := l.Lock(context.Background(), "/a")
		assert.NoError(t, err)
		close(acquired)
		second()
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired while held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock not acquired after unlock")
	}
}

func TestDo_ReturnsError(t *testing.T) {
	var l Locker
	err := l.Do(context.Background(), "/a", func() error { return assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)

	// The lock is released after an error.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, l.Do(ctx, "/a", func() error { return nil }))
}
