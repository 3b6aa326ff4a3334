// Package ratelimit caps chat requests per client over a sliding minute,
// backed by github.com/vnmchuo/ratelimiter.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	extratelimit "github.com/vnmchuo/ratelimiter"
)

// RetryAfter is advertised to clients that hit the limit.
const RetryAfter = time.Minute

type Limiter struct {
	store extratelimit.Limiter
}

// NewLimiter allows rpm requests per client per minute.
func NewLimiter(rdb *redis.Client, rpm int) *Limiter {
	store := extratelimit.NewRedisStore(rdb,
		extratelimit.WithLimit(rpm),
		extratelimit.WithWindow(time.Minute),
	)
	return &Limiter{store: store}
}

func NewTestLimiter(store extratelimit.Limiter) *Limiter {
	return &Limiter{store: store}
}

func clientKey(clientID string) string {
	if clientID == "" {
		clientID = "anonymous"
	}
	return fmt.Sprintf("ratelimit:client:%s", clientID)
}

// Allow consumes one request for clientID. A nil Limiter allows everything.
func (l *Limiter) Allow(ctx context.Context, clientID string) (bool, error) {
	if l == nil {
		return true, nil
	}
	res, err := l.store.Allow(ctx, clientKey(clientID))
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}
