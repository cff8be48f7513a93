// Package ratelimit provides client-side rate limiting for provider API
// requests. Each provider client owns one limiter sized to its plan's
// requests-per-minute allowance; waiting is bounded so a saturated limiter
// surfaces as an error instead of an indefinite stall.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMaxWait bounds how long a request waits on the limiter before
// giving up.
const DefaultMaxWait = 10 * time.Second

// Limiter enforces a requests-per-minute budget for one provider client.
type Limiter struct {
	mu      sync.RWMutex
	limiter *rate.Limiter
	maxWait time.Duration
}

// PerMinute creates a limiter allowing requestsPerMinute sustained requests
// with an equal burst. Non-positive values disable limiting.
func PerMinute(requestsPerMinute int) *Limiter {
	l := &Limiter{maxWait: DefaultMaxWait}
	if requestsPerMinute > 0 {
		l.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute)
	}
	return l
}

// SetRate replaces the budget, for plan-tier changes at runtime.
func (l *Limiter) SetRate(requestsPerMinute int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if requestsPerMinute <= 0 {
		l.limiter = nil
		return
	}
	l.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute)
}

// Wait blocks until the limiter admits one request, the bounded wait
// expires, or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.RLock()
	limiter := l.limiter
	maxWait := l.maxWait
	l.mu.RUnlock()
	if limiter == nil {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()
	if err := limiter.Wait(waitCtx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Allow reports whether one request may proceed immediately.
func (l *Limiter) Allow() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.limiter == nil {
		return true
	}
	return l.limiter.Allow()
}
