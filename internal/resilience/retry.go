package resilience

import (
	"context"
	"time"
)

// RetryPolicy bounds how many attempts a remote call gets and how long to
// wait before each one. Waits grow exponentially from MinWait and are capped
// at MaxWait; the first attempt never waits.
type RetryPolicy struct {
	MaxAttempts int
	MinWait     time.Duration
	MaxWait     time.Duration
	Jitter      func(time.Duration) time.Duration
	Sleep       func(context.Context, time.Duration) error
	OnWait      func(attempt int, d time.Duration)
}

// Attempts returns the number of attempts permitted, at least one.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Wait returns the backoff before the given attempt (1-indexed).
func (p RetryPolicy) Wait(attempt int) time.Duration {
	if attempt <= 1 || p.MinWait <= 0 {
		return 0
	}
	shift := attempt - 2
	// Past 32 doublings any sane MinWait has overflowed; clamp to the cap.
	if shift > 32 {
		shift = 32
	}
	d := p.MinWait << shift
	if p.MaxWait > 0 && (d > p.MaxWait || d <= 0) {
		d = p.MaxWait
	}
	return d
}

// WaitBefore sleeps the backoff for the attempt, honoring cancellation.
func (p RetryPolicy) WaitBefore(ctx context.Context, attempt int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := p.Wait(attempt)
	if p.Jitter != nil {
		d = p.Jitter(d)
	}
	if d <= 0 {
		return nil
	}
	if p.OnWait != nil {
		p.OnWait(attempt, d)
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepWithContext
	}
	return sleep(ctx, d)
}

// SleepWithContext waits for d or until the context ends.
func SleepWithContext(ctx context.Context, d time.Duration) error {
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
