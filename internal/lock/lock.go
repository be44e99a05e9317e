// Package lock serializes work on a key across goroutines or processes.
package lock

import (
	"context"
	"sync"
)

// Locker grants exclusive ownership of a key. TryLock does not block: it
// reports false when another owner holds the key.
type Locker interface {
	TryLock(ctx context.Context, key string) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Noop grants every lock. It suits a single process where in-flight
// deduplication already happens above the locker.
type Noop struct{}

var _ Locker = Noop{} // Compile-time check

func (Noop) TryLock(context.Context, string) (bool, error) { return true, nil }

func (Noop) Unlock(context.Context, string) error { return nil }

// Local is an in-process key locker.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

var _ Locker = (*Local)(nil) // Compile-time check

// NewLocal returns an empty in-process locker.
func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

// TryLock takes key if nobody holds it.
func (l *Local) TryLock(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return false, nil
	}
	l.held[key] = struct{}{}
	return true, nil
}

// Unlock releases key. Releasing a free key is a no-op.
func (l *Local) Unlock(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.held, key)
	l.mu.Unlock()
	return nil
}
