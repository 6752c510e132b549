// Package ratelimit paces requests to the translation service with a token bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Waiter is satisfied by *RateLimiter and by Unlimited.
type Waiter interface {
	Wait(ctx context.Context) error
}

// RateLimiter is a token bucket. It holds up to maxTokens and refills at
// refillRate tokens per second.
type RateLimiter struct {
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time
	lastWarn   time.Time
	mu         sync.Mutex
}

// NewRateLimiter returns a limiter that starts with a full bucket.
func NewRateLimiter(tokensPerSecond, burstSize float64) *RateLimiter {
	if burstSize < 1 {
		burstSize = 1
	}
	return &RateLimiter{
		tokens:     burstSize,
		maxTokens:  burstSize,
		refillRate: tokensPerSecond,
		lastRefill: time.Now(),
	}
}

// ForService returns the limiter used in front of the upload endpoint.
// A non-positive rate disables pacing.
func ForService(requestsPerSecond, burst float64) Waiter {
	if requestsPerSecond <= 0 {
		return Unlimited{}
	}
	return NewRateLimiter(requestsPerSecond, burst)
}

// Unlimited never blocks except to report a finished context.
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) error {
	return ctx.Err()
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	start := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rl.tryAcquire() {
			if waited := time.Since(start); waited > 5*time.Second {
				log.Debug().Dur("waited", waited).Msg("Rate limit wait completed")
			}
			return nil
		}

		wait := rl.timeUntilNextToken()
		rl.maybeWarn(wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (rl *RateLimiter) maybeWarn(wait time.Duration) {
	if wait <= 2*time.Second {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if time.Since(rl.lastWarn) > 10*time.Second {
		log.Info().Msgf("Rate limited: waiting ~%.1fs before the next upload", wait.Seconds())
		rl.lastWarn = time.Now()
	}
}

// refillLocked must be called with mu held.
func (rl *RateLimiter) refillLocked(now time.Time) {
	rl.tokens += now.Sub(rl.lastRefill).Seconds() * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now
}

func (rl *RateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked(time.Now())
	if rl.tokens >= 1.0 {
		rl.tokens -= 1.0
		return true
	}
	return false
}

func (rl *RateLimiter) timeUntilNextToken() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	needed := 1.0 - rl.tokens
	if needed <= 0 || rl.refillRate <= 0 {
		return time.Millisecond
	}
	return time.Duration(needed / rl.refillRate * float64(time.Second))
}

// Tokens returns the current token count after refilling.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked(time.Now())
	return rl.tokens
}
