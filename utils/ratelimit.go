package utils

import (
	"time"

	"github.com/borderlesste/cavb-visa-sub000/storage"
)

// AllowAttempt implements a fixed-window counter in Redis. It fails open:
// with no Redis configured (dev, tests) every attempt is allowed.
func AllowAttempt(key string, limit int64, window time.Duration) bool {
	if storage.Redis == nil {
		return true
	}

	count, err := storage.Redis.Incr(bgContext, key).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		storage.Redis.Expire(bgContext, key, window)
	}
	return count <= limit
}
