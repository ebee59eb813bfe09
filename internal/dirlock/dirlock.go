// Package dirlock serializes work done in the same directory, e.g. running
// gcov or deleting the files it produced.
package dirlock

import (
	"context"
	"path/filepath"
	"sync"
)

// Locker holds the set of locked directories. The zero value is ready to
// use.
type Locker struct {
	mu     sync.Mutex
	locked map[string]chan struct{}
}

// Lock blocks until dir is free and locks it. The returned func unlocks
// the directory and must be called exactly once. An error is only
// returned if ctx is done before the lock was acquired.
func (l *Locker) Lock(ctx context.Context, dir string) (func(), error) {
	dir = filepath.Clean(dir)
	for {
		l.mu.Lock()
		if l.locked == nil {
			l.locked = map[string]chan struct{}{}
		}
		released, busy := l.locked[dir]
		if !busy {
			released = make(chan struct{})
			l.locked[dir] = released
			l.mu.Unlock()
			return func() { l.unlock(dir, released) }, nil
		}
		l.mu.Unlock()

		select {
		case <-released:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *Locker) unlock(dir string, released chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locked[dir] == released {
		delete(l.locked, dir)
		close(released)
	}
}

// Do runs fn with dir locked.
func (l *Locker) Do(ctx context.Context, dir string, fn func() error) error {
	unlock, err := l.Lock(ctx, dir)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}
