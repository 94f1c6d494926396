package web

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter keeps one token bucket per user for expensive operations.
type rateLimiter struct {
	mu     sync.Mutex
	limits map[string]*rate.Limiter
	every  rate.Limit
	burst  int
}

// newRateLimiter allows perMinute events per user with the given burst.
// A perMinute of zero disables limiting.
func newRateLimiter(perMinute float64, burst int) *rateLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(perMinute / time.Minute.Seconds())
	}
	return &rateLimiter{
		limits: make(map[string]*rate.Limiter),
		every:  limit,
		burst:  max(burst, 1),
	}
}

func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.limits[key]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(rl.every, rl.burst)
	rl.limits[key] = limiter
	return limiter
}

// Allow reports whether key may act now.
func (rl *rateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}
