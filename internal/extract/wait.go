package extract

import (
	"context"
	"time"
)

// RenderWaitStrategy decides how long to sit between protocol phases while
// the page settles. There is no reliable render-complete signal for arbitrary
// client-rendered pages, so the default is a cancellable fixed delay.
type RenderWaitStrategy interface {
	Wait(ctx context.Context, d time.Duration) error
}

// FixedDelay sleeps for the full duration unless the context ends first.
type FixedDelay struct{}

func (FixedDelay) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NoWait skips settle delays entirely. Used by tests and dry runs.
type NoWait struct{}

func (NoWait) Wait(context.Context, time.Duration) error { return nil }
