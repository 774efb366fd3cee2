package throttle

import (
	"context"
	"sync"
	"time"
)

// Throttle enforces a minimum interval between outbound portal requests.
// Each caller reserves the next free slot under the mutex, then sleeps
// until its turn, so concurrent callers are strictly serialized at the
// configured rate instead of stampeding when the interval elapses.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// New creates a throttle with the given minimum interval between grants.
// A non-positive interval disables waiting.
func New(interval time.Duration) *Throttle {
	return &Throttle{interval: interval}
}

// Wait blocks until this caller's reserved slot arrives, or until ctx is
// done. On cancellation the reserved slot is not released; keeping it
// burned preserves spacing for callers already queued behind it.
func (t *Throttle) Wait(ctx context.Context) error {
	if t.interval <= 0 {
		return ctx.Err()
	}

	t.mu.Lock()
	now := time.Now()
	turn := t.next
	if turn.Before(now) {
		turn = now
	}
	t.next = turn.Add(t.interval)
	t.mu.Unlock()

	delay := time.Until(turn)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Interval returns the configured minimum spacing.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}
