package suggest

import (
	"context"
	"sync"
	"time"
)

// callPacer enforces a minimum spacing between outbound suggestion calls.
// The last-call timestamp is shared by every in-flight request, so the
// read-wait-record sequence runs under one mutex; holding the lock across
// the sleep keeps two callers from firing inside the same spacing window.
type callPacer struct {
	mu       sync.Mutex
	minGap   time.Duration
	lastCall time.Time
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
}

func newCallPacer(minGap time.Duration) *callPacer {
	return &callPacer{
		minGap: minGap,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Wait blocks until the configured spacing since the previous call has
// elapsed, then records the new call time. Returns early only on context
// cancellation.
func (p *callPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.minGap > 0 && !p.lastCall.IsZero() {
		if remaining := p.minGap - p.now().Sub(p.lastCall); remaining > 0 {
			if err := p.sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}
	p.lastCall = p.now()
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
