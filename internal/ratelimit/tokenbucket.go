package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucketEntry pairs a token-bucket limiter with its last-seen time so the
// background sweep can evict identities that have gone idle.
type bucketEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// TokenBucket is a per-identity token-bucket limiter backed by
// golang.org/x/time/rate, grounded on the teacher's
// api/middleware/ratelimit.go. It offers a smoothed, burst-tolerant limit as
// an alternative to SlidingWindow; the HTTP edge middleware does not use it.
type TokenBucket struct {
	mu                sync.Mutex
	limiters          map[string]*bucketEntry
	requestsPerSecond float64
	burst             int
	idleTTL           time.Duration
}

// NewTokenBucket creates a TokenBucket limiter. idleTTL controls how long an
// identity may go unused before its limiter is evicted by Cleanup.
func NewTokenBucket(requestsPerSecond float64, burst int, idleTTL time.Duration) *TokenBucket {
	if idleTTL <= 0 {
		idleTTL = time.Hour
	}
	return &TokenBucket{
		limiters:          make(map[string]*bucketEntry),
		requestsPerSecond: requestsPerSecond,
		burst:             burst,
		idleTTL:           idleTTL,
	}
}

// Allow reports whether a request from identity is admitted right now.
func (tb *TokenBucket) Allow(identity string) bool {
	return tb.limiterFor(identity).Allow()
}

func (tb *TokenBucket) limiterFor(identity string) *rate.Limiter {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	e, ok := tb.limiters[identity]
	if !ok {
		e = &bucketEntry{limiter: rate.NewLimiter(rate.Limit(tb.requestsPerSecond), tb.burst)}
		tb.limiters[identity] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

// Cleanup evicts identities idle for longer than idleTTL.
func (tb *TokenBucket) Cleanup() {
	cutoff := time.Now().Add(-tb.idleTTL)
	tb.mu.Lock()
	defer tb.mu.Unlock()
	for id, e := range tb.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(tb.limiters, id)
		}
	}
}

// RunCleanupLoop starts a background goroutine invoking Cleanup on the given
// interval until stop is closed.
func (tb *TokenBucket) RunCleanupLoop(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				tb.Cleanup()
			}
		}
	}()
}
