package fetchstrategy

import (
	"context"
	"testing"
	"time"
)

func TestWithRetry_SucceedsAfterTransientNetworkErrors(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	res, err := withRetry(context.Background(), policy, func() (*Result, error) {
		calls++
		if calls < 3 {
			return nil, NewFetchError(ErrNetwork, "transient", nil)
		}
		return &Result{HTML: "ok"}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.HTML != "ok" {
		t.Fatalf("HTML = %q, want ok", res.HTML)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestWithRetry_DoesNotRetryBlocked(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	_, err := withRetry(context.Background(), policy, func() (*Result, error) {
		calls++
		return nil, NewFetchError(ErrBlocked, "blocked", nil)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on Blocked)", calls)
	}
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	_, err := withRetry(context.Background(), policy, func() (*Result, error) {
		calls++
		return nil, NewFetchError(ErrNetwork, "always fails", nil)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}
