package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const acquireRetryInterval = 50 * time.Millisecond

// releaseScript deletes the lock key only when the caller still holds it.
// A mismatched or missing token means the lease expired and was possibly
// handed to another worker; deleting it then would break their exclusion.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0`)

// RedisCoordinator implements Coordinator on a shared redis instance, so
// the exclusion holds across service instances, not just goroutines.
type RedisCoordinator struct {
	client *redis.Client
}

func NewRedisCoordinator(client *redis.Client) *RedisCoordinator {
	return &RedisCoordinator{client: client}
}

func (c *RedisCoordinator) WithLock(ctx context.Context, key string, wait, lease time.Duration, fn func(ctx context.Context) error) error {
	lockKey := fmt.Sprintf("lock:%s", key)
	token := uuid.NewString()

	acquired, err := c.acquire(ctx, lockKey, token, wait, lease)
	if err != nil {
		return err
	}
	if !acquired {
		return ErrLockNotAcquired
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Release failures are tolerated: the lease expires on its own.
		_, _ = releaseScript.Run(releaseCtx, c.client, []string{lockKey}, token).Result()
	}()

	return fn(ctx)
}

func (c *RedisCoordinator) acquire(ctx context.Context, lockKey, token string, wait, lease time.Duration) (bool, error) {
	deadline := time.Now().Add(wait)

	for {
		ok, err := c.client.SetNX(ctx, lockKey, token, lease).Result()
		if err != nil {
			return false, fmt.Errorf("failed to acquire lock %s: %w", lockKey, err)
		}
		if ok {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(acquireRetryInterval):
		}
	}
}
