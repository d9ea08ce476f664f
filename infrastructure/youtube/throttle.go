package youtube

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultBackoff = 30 * time.Second

// throttle is a token bucket with an extra pause after YouTube answers 429.
type throttle struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

func newThrottle(rps float64) *throttle {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &throttle{limiter: rate.NewLimiter(limit, max(1, int(rps)))}
}

// Wait blocks until the next request may be sent.
func (t *throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	retryAt := t.retryAt
	t.mu.Unlock()

	if wait := time.Until(retryAt); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return t.limiter.Wait(ctx)
}

// Backoff pauses all requests for d, or a default when d is not positive.
func (t *throttle) Backoff(d time.Duration) {
	if d <= 0 {
		d = defaultBackoff
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if until := time.Now().Add(d); until.After(t.retryAt) {
		t.retryAt = until
	}
}
