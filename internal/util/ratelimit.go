package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket holding up to burst tokens, refilled at a
// fixed rate.
type RateLimiter struct {
	mu       sync.Mutex
	rate     float64 // tokens per second
	burst    float64
	tokens   float64
	lastTime time.Time
}

// NewRateLimiter creates a RateLimiter allowing perMinute operations per
// minute, of which up to burst may run back to back. The bucket starts full.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rate:     float64(perMinute) / 60.0,
		burst:    float64(burst),
		tokens:   float64(burst),
		lastTime: time.Now(),
	}
}

// reserve takes a token if one is available and otherwise returns how long
// until the next one accrues.
func (rl *RateLimiter) reserve(now time.Time) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.tokens = min(rl.burst, rl.tokens+now.Sub(rl.lastTime).Seconds()*rl.rate)
	rl.lastTime = now
	if rl.tokens >= 1 {
		rl.tokens--
		return 0
	}
	if rl.rate <= 0 {
		return time.Minute
	}
	return time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
}

// Wait blocks until a token is available or ctx is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		d := rl.reserve(time.Now())
		if d <= 0 {
			return nil
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
