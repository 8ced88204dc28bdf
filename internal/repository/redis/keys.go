package redis

import "time"

const (
	KeyPoolLock = "promohub:pool:%d:lock"
	KeyThrottle = "promohub:throttle:%s:%d"

	DefaultPoolLockTTL = 10 * time.Second
	lockRetryInterval  = 15 * time.Millisecond
)
