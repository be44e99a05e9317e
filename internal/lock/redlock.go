package lock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
)

// Redlock is a Locker backed by the Redlock algorithm over one or more
// independent redis servers.
type Redlock struct {
	manager *redlock.RedLock
	ttl     time.Duration
	prefix  string
}

var _ Locker = (*Redlock)(nil) // Compile-time check

// NewRedlock connects to addrs and returns a locker whose locks expire
// after ttl unless released. Addresses without a scheme get tcp://.
func NewRedlock(ctx context.Context, addrs []string, ttl time.Duration) (*Redlock, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("redlock needs at least one redis address")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("redlock ttl must be positive, got %s", ttl)
	}

	normalized := make([]string, len(addrs))
	for i, a := range addrs {
		if !strings.Contains(a, "://") {
			a = "tcp://" + a
		}
		normalized[i] = a
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	manager, err := redlock.NewRedLock(dialCtx, normalized)
	if err != nil {
		return nil, fmt.Errorf("creating redlock manager: %w", err)
	}
	return &Redlock{manager: manager, ttl: ttl, prefix: "readiness:lock:"}, nil
}

// TryLock attempts to take key once. Failure to reach a quorum is reported
// as not acquired.
func (r *Redlock) TryLock(ctx context.Context, key string) (bool, error) {
	expiry, err := r.manager.Lock(ctx, r.prefix+key, r.ttl)
	if err != nil {
		return false, nil
	}
	if expiry <= 0 {
		return false, fmt.Errorf("acquiring lock %s: invalid expiry %v", key, expiry)
	}
	return true, nil
}

// Unlock releases key.
func (r *Redlock) Unlock(ctx context.Context, key string) error {
	if err := r.manager.UnLock(ctx, r.prefix+key); err != nil {
		return fmt.Errorf("releasing lock %s: %w", key, err)
	}
	return nil
}
