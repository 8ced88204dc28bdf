package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"promoHub/business/allocation"
	"promoHub/pkg/logger"
)

// releaseScript deletes the lock only while it still carries our token, so a
// holder whose TTL lapsed cannot drop somebody else's lock.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// PoolLocker serializes attempts on a pool across engine instances.
type PoolLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPoolLocker(client *redis.Client, ttl time.Duration) *PoolLocker {
	if ttl <= 0 {
		ttl = DefaultPoolLockTTL
	}
	return &PoolLocker{client: client, ttl: ttl}
}

var _ allocation.PoolLocker = (*PoolLocker)(nil)

// Lock polls SET NX until the lock is acquired or ctx is done.
func (l *PoolLocker) Lock(ctx context.Context, poolID uint) (func(), error) {
	key := fmt.Sprintf(KeyPoolLock, poolID)
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to acquire pool lock: %w", err)
		}
		if ok {
			return l.releaser(key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *PoolLocker) releaser(key, token string) func() {
	return func() {
		// the attempt context may be past its deadline by now
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			logger.Warn("Failed to release pool lock", "key", key, "error", err)
		}
	}
}
