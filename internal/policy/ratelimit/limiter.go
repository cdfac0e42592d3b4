// Package ratelimit enforces a minimum delay between requests to the same host.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/metrics"
)

// Limiter keeps one token bucket per host. Waiters block; nothing is dropped.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
}

// New creates a Limiter that spaces requests to a host by at least delay.
// A zero delay disables limiting.
func New(delay time.Duration) *Limiter {
	every := rate.Inf
	if delay > 0 {
		every = rate.Every(delay)
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		every:    every,
	}
}

// Wait blocks until a token is available for the URL's host, respecting the context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := Host(rawURL)
	l.mu.Lock()
	limiter, exists := l.limiters[host]
	if !exists {
		limiter = rate.NewLimiter(l.every, 1)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(host, waited)
	}
	return nil
}

// Host returns the lowercase host of rawURL, or "unknown".
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
