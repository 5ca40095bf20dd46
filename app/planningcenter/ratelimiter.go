package planningcenter

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultMaxRequests = 80
	DefaultWindow      = time.Minute

	// Small cushion added to every computed wait so the oldest timestamp
	// has actually left the window when we re-check.
	acquireBuffer = 100 * time.Millisecond
)

// RateLimiter enforces a sliding-window cap on outbound API requests.
// It owns the timestamp sequence of granted permits and is safe for
// concurrent use.
type RateLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	granted     []time.Time

	// Injected for tests, defaults to the real clock
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// Acquire blocks until a request slot is free within the trailing window,
// then records the permit. Cancellable via ctx.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := r.now()
		r.prune(now)

		if len(r.granted) < r.maxRequests {
			r.granted = append(r.granted, now)
			r.mu.Unlock()
			return nil
		}

		wait := r.window - now.Sub(r.granted[0]) + acquireBuffer
		r.mu.Unlock()

		slog.Debug("Rate limit reached, waiting", "wait", wait.String())
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// prune drops timestamps older than now minus the window. Caller holds mu.
func (r *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-r.window)
	i := 0
	for i < len(r.granted) && !r.granted[i].After(cutoff) {
		i++
	}
	if i > 0 {
		r.granted = append(r.granted[:0], r.granted[i:]...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
