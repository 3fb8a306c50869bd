package pipeline

import (
	"context"
	"time"
)

// Pacing holds the waits applied between gateway calls.
type Pacing struct {
	SuccessDelay  time.Duration // after a completed item, skipped after the last one
	QuotaCooldown time.Duration // after a quota/rate-limit failure
	FailureDelay  time.Duration // after any other failure
}

func DefaultPacing() Pacing {
	return Pacing{
		SuccessDelay:  12 * time.Second,
		QuotaCooldown: 60 * time.Second,
		FailureDelay:  2 * time.Second,
	}
}

// after picks the delay that follows an item outcome. Failure delays apply even after the last
// item so the provider is cooled down before the batch flag is released.
func (p Pacing) after(res outcome, last bool) (time.Duration, string) {
	switch res {
	case outcomeCompleted:
		if last {
			return 0, ""
		}
		return p.SuccessDelay, "success"
	case outcomeQuota:
		return p.QuotaCooldown, "quota_cooldown"
	case outcomeFailure:
		return p.FailureDelay, "failure"
	default:
		return 0, ""
	}
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the production Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
