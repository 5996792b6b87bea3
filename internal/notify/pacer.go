package notify

import (
	"context"
	"time"
)

// Pacer spaces consecutive dispatches so a burst of new entries cannot
// flood the notification endpoint. The next dispatch is scheduled no
// earlier than the previous dispatch time plus delay(priority), where the
// delay decreases monotonically with priority: priority 5 waits minDelay,
// priority 1 waits maxDelay, intermediate priorities interpolate linearly.
// No delay is applied before the first dispatch of a cycle.
type Pacer struct {
	minDelay time.Duration
	maxDelay time.Duration

	last time.Time

	// swappable in tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewPacer(minDelay, maxDelay time.Duration) *Pacer {
	return &Pacer{
		minDelay: minDelay,
		maxDelay: maxDelay,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Delay maps a priority in [1,5] to the pause preceding a dispatch of that
// priority. Out-of-range values are clamped.
func (p *Pacer) Delay(priority int) time.Duration {
	if priority < 1 {
		priority = 1
	}
	if priority > 5 {
		priority = 5
	}
	span := p.maxDelay - p.minDelay
	return p.maxDelay - span*time.Duration(priority-1)/4
}

// Wait blocks until the pacing constraint for a dispatch of the given
// priority is satisfied, then marks the dispatch time. It returns early
// only when ctx is done.
func (p *Pacer) Wait(ctx context.Context, priority int) error {
	if !p.last.IsZero() {
		target := p.last.Add(p.Delay(priority))
		if d := target.Sub(p.now()); d > 0 {
			if err := p.sleep(ctx, d); err != nil {
				return err
			}
		}
	}
	p.last = p.now()
	return nil
}

// Reset clears the previous dispatch time so the next dispatch starts a
// fresh cycle without waiting.
func (p *Pacer) Reset() {
	p.last = time.Time{}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
