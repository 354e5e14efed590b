package resilience

import (
	"context"
	"time"
)

// Backoff computes the delay before a subsequent attempt. The delay
// grows linearly: Base multiplied by the attempt number.
type Backoff struct {
	// Base is the delay unit. Non-positive disables waiting.
	Base time.Duration
	// Max caps any single delay. Zero means no cap.
	Max time.Duration
}

// Delay returns the backoff for the given 1-based attempt number.
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 || attempt <= 0 {
		return 0
	}

	d := b.Base * time.Duration(attempt)
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}

// Sleep waits for the given duration or until the context is done,
// whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
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
