package fetchstrategy

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy bounds a retry loop with exponential backoff and jitter.
//
// Grounded on rohmanhakim-docs-crawler/pkg/retry's RetryParam/Retry shape,
// simplified to this package's single retry predicate (retry on Network and
// non-blocked transient failures, per spec.md §4.5's plain-fetcher contract)
// rather than that package's generic classified-error interface.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      time.Duration
}

// DefaultRetryPolicy is the plain fetcher's retry budget: up to 3 attempts.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   200 * time.Millisecond,
	MaxDelay:    3 * time.Second,
	Jitter:      150 * time.Millisecond,
}

// shouldRetry reports whether err warrants another attempt: Network errors
// and Timeout are transient; Blocked, InvalidURL and Unsupported are not.
func shouldRetry(err error) bool {
	fe, ok := err.(*FetchError)
	if !ok {
		return true
	}
	switch fe.Kind {
	case ErrNetwork, ErrTimeout:
		return true
	default:
		return false
	}
}

// withRetry runs fn up to policy.MaxAttempts times, backing off
// exponentially between retryable failures. The context's cancellation is
// honored between attempts.
func withRetry(ctx context.Context, policy RetryPolicy, fn func() (*Result, error)) (*Result, error) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !shouldRetry(err) || attempt == policy.MaxAttempts {
			break
		}

		delay := policy.BaseDelay * time.Duration(1<<uint(attempt-1))
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
		if policy.Jitter > 0 {
			delay += time.Duration(rand.Int63n(int64(policy.Jitter)))
		}

		select {
		case <-ctx.Done():
			return nil, NewFetchError(ErrTimeout, "context canceled during retry backoff", ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}
