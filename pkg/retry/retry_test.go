package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 3}, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 3, Backoff: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	errBoom := errors.New("boom")
	err := Do(context.Background(), Policy{Attempts: 3, Backoff: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return errBoom
	})
	if err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}
	if !errors.Is(err, errBoom) {
		t.Errorf("Expected wrapped boom error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	Do(context.Background(), Policy{}, func(ctx context.Context) error {
		calls++
		return errors.New("fail")
	})
	if calls != 1 {
		t.Errorf("Expected 1 call with zero-attempt policy, got %d", calls)
	}
}

func TestDo_CancelledContextStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{Attempts: 5, Backoff: 50 * time.Millisecond}, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call before cancellation, got %d", calls)
	}
}
