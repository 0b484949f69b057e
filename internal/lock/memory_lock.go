package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCoordinator implements Coordinator for a single process. It keeps
// the same lease semantics as the redis variant (bounded wait, auto-expiry,
// token-checked release), which makes it suitable for tests and single-node
// deployments.
type MemoryCoordinator struct {
	mu     sync.Mutex
	leases map[string]memoryLease
}

type memoryLease struct {
	token     string
	expiresAt time.Time
}

func NewMemoryCoordinator() *MemoryCoordinator {
	return &MemoryCoordinator{leases: make(map[string]memoryLease)}
}

func (c *MemoryCoordinator) WithLock(ctx context.Context, key string, wait, lease time.Duration, fn func(ctx context.Context) error) error {
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for !c.tryAcquire(key, token, lease) {
		if time.Now().After(deadline) {
			return ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}

	defer c.release(key, token)
	return fn(ctx)
}

func (c *MemoryCoordinator) tryAcquire(key, token string, lease time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if held, ok := c.leases[key]; ok && time.Now().Before(held.expiresAt) {
		return false
	}
	c.leases[key] = memoryLease{token: token, expiresAt: time.Now().Add(lease)}
	return true
}

// release drops the lease only when the caller still holds it; an expired
// lease may already belong to someone else.
func (c *MemoryCoordinator) release(key, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if held, ok := c.leases[key]; ok && held.token == token {
		delete(c.leases, key)
	}
}
