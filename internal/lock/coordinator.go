// Package lock provides named mutual exclusion via time-bounded exclusive
// leases. A lease auto-expires after its lease timeout, so a crashed or
// hung holder cannot starve other workers indefinitely.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrLockNotAcquired is returned when the lease could not be acquired
// within the wait timeout. Callers may retry with backoff.
var ErrLockNotAcquired = errors.New("lock not acquired within wait timeout")

// Coordinator hands out exclusive leases keyed by arbitrary strings.
type Coordinator interface {
	// WithLock acquires the lease for key within wait, runs fn, and
	// releases the lease on every exit path. The lease expires on its own
	// after lease even if the holder never releases it. A release attempted
	// after expiry is a benign no-op.
	WithLock(ctx context.Context, key string, wait, lease time.Duration, fn func(ctx context.Context) error) error
}
