package ws

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// AttemptLimiter bounds connection attempts per user, the server-side guard
// against a client stuck in a reconnect loop hammering the gateway. Limiter
// state lives in an LRU so abandoned identities age out on their own.
type AttemptLimiter struct {
	perMinute int
	limiters  *lru.Cache[int64, *rate.Limiter]
}

// NewAttemptLimiter allows perMinute attempts per user id with a burst of
// the same size. perMinute <= 0 disables limiting.
func NewAttemptLimiter(perMinute int) *AttemptLimiter {
	cache, _ := lru.New[int64, *rate.Limiter](4096)
	return &AttemptLimiter{
		perMinute: perMinute,
		limiters:  cache,
	}
}

func (l *AttemptLimiter) Allow(userID int64) bool {
	if l.perMinute <= 0 {
		return true
	}

	lim, ok := l.limiters.Get(userID)
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), l.perMinute)
		l.limiters.Add(userID, lim)
	}
	return lim.Allow()
}
