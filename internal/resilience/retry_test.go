package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicy_WaitSequence(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{
		MaxAttempts: 7,
		MinWait:     time.Second,
		MaxWait:     10 * time.Second,
	}

	want := []time.Duration{
		0,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	for i, expected := range want {
		attempt := i + 1
		if got := policy.Wait(attempt); got != expected {
			t.Fatalf("attempt %d: expected wait %v, got %v", attempt, expected, got)
		}
	}
}

func TestRetryPolicy_WaitNeverExceedsCapOnOverflow(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{
		MaxAttempts: 100,
		MinWait:     time.Second,
		MaxWait:     10 * time.Second,
	}
	if got := policy.Wait(80); got != 10*time.Second {
		t.Fatalf("expected cap %v, got %v", 10*time.Second, got)
	}
}

func TestRetryPolicy_AttemptsAtLeastOne(t *testing.T) {
	t.Parallel()

	if got := (RetryPolicy{}).Attempts(); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
	if got := (RetryPolicy{MaxAttempts: 3}).Attempts(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestRetryPolicy_WaitBeforeSleepsAndReports(t *testing.T) {
	t.Parallel()

	var slept []time.Duration
	var reported []time.Duration
	policy := RetryPolicy{
		MaxAttempts: 3,
		MinWait:     time.Second,
		MaxWait:     10 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
		OnWait: func(_ int, d time.Duration) {
			reported = append(reported, d)
		},
	}

	for attempt := 1; attempt <= 3; attempt++ {
		if err := policy.WaitBefore(context.Background(), attempt); err != nil {
			t.Fatalf("attempt %d: %v", attempt, err)
		}
	}

	want := []time.Duration{time.Second, 2 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), slept)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Fatalf("sleep %d: expected %v, got %v", i, want[i], slept[i])
		}
		if reported[i] != want[i] {
			t.Fatalf("report %d: expected %v, got %v", i, want[i], reported[i])
		}
	}
}

func TestRetryPolicy_WaitBeforeHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := RetryPolicy{
		MaxAttempts: 3,
		MinWait:     time.Second,
		Sleep: func(context.Context, time.Duration) error {
			t.Fatal("sleep should not run after cancellation")
			return nil
		},
	}
	if err := policy.WaitBefore(ctx, 2); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSleepWithContext_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := SleepWithContext(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
