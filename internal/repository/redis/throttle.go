package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle is a fixed-window request counter per principal shared by every
// engine instance.
type Throttle struct {
	client *redis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewThrottle(client *redis.Client, limit int, window time.Duration) *Throttle {
	return &Throttle{client: client, limit: int64(limit), window: window, now: time.Now}
}

// Allow counts one request for key and reports whether it fits in the
// current window. The second value is the time left in the window.
func (t *Throttle) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if t.limit <= 0 || t.window <= 0 {
		return true, 0, nil
	}

	slot := t.now().UnixNano() / int64(t.window)
	redisKey := fmt.Sprintf(KeyThrottle, key, slot)

	pipe := t.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, t.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to count request: %w", err)
	}

	windowEnd := time.Unix(0, (slot+1)*int64(t.window))
	retry := windowEnd.Sub(t.now())

	return incr.Val() <= t.limit, retry, nil
}
