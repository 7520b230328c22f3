// Package throttle caps how often an OTP may be requested or guessed for one
// identifier.
package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/productr-api/internal/domain"
)

// Key prefixes for the two limiters the API runs.
const (
	RequestPrefix = "otp:req:"
	VerifyPrefix  = "otp:verify:"
)

// Counter increments key and returns the new count. The first increment of a
// key starts a window of the given length after which the count resets.
// Count reads the current count without incrementing; a missing or expired
// key counts as zero.
type Counter interface {
	IncrWithExpire(ctx context.Context, key string, window time.Duration) (int64, error)
	Count(ctx context.Context, key string) (int64, error)
}

// Limiter is a fixed-window limiter keyed by prefix+identifier.
type Limiter struct {
	counter Counter
	prefix  string
	limit   int
	window  time.Duration
}

func NewLimiter(counter Counter, prefix string, limit int, window time.Duration) *Limiter {
	return &Limiter{counter: counter, prefix: prefix, limit: limit, window: window}
}

// Allow records one hit for identifier and fails with
// domain.ErrTooManyRequests once the window's limit is exceeded.
func (l *Limiter) Allow(ctx context.Context, identifier string) error {
	n, err := l.counter.IncrWithExpire(ctx, l.prefix+identifier, l.window)
	if err != nil {
		return fmt.Errorf("otp throttle: %w", err)
	}
	if int(n) > l.limit {
		return fmt.Errorf("more than %d hits on %s in %s: %w", l.limit, l.prefix, l.window, domain.ErrTooManyRequests)
	}
	return nil
}

// Check fails with domain.ErrTooManyRequests when identifier already has
// limit hits in the current window. It records nothing.
func (l *Limiter) Check(ctx context.Context, identifier string) error {
	n, err := l.counter.Count(ctx, l.prefix+identifier)
	if err != nil {
		return fmt.Errorf("otp throttle: %w", err)
	}
	if int(n) >= l.limit {
		return fmt.Errorf("%d hits on %s in %s: %w", n, l.prefix, l.window, domain.ErrTooManyRequests)
	}
	return nil
}

// Record adds one hit for identifier without enforcing the limit.
func (l *Limiter) Record(ctx context.Context, identifier string) error {
	if _, err := l.counter.IncrWithExpire(ctx, l.prefix+identifier, l.window); err != nil {
		return fmt.Errorf("otp throttle: %w", err)
	}
	return nil
}

type window struct {
	count   int64
	resetAt time.Time
}

// MemoryCounter is an in-process Counter for single-instance deployments.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{windows: make(map[string]*window), now: time.Now}
}

func (c *MemoryCounter) IncrWithExpire(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(ttl)}
		c.windows[key] = w
		c.sweep(now)
	}
	w.count++
	return w.count, nil
}

func (c *MemoryCounter) Count(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.windows[key]
	if !ok || !c.now().Before(w.resetAt) {
		return 0, nil
	}
	return w.count, nil
}

// sweep drops expired windows. Called with mu held.
func (c *MemoryCounter) sweep(now time.Time) {
	for k, w := range c.windows {
		if !now.Before(w.resetAt) {
			delete(c.windows, k)
		}
	}
}
