// Package ratelimit implements per-identifier admission control.
//
// SlidingWindow is grounded on the spec's exact counting-window contract.
// TokenBucket is grounded on the teacher's api/middleware/ratelimit.go
// (golang.org/x/time/rate per identity, with a background sweep of idle
// entries) and is an alternate limiter that nothing in the request path
// uses; the HTTP edge middleware admits requests through SlidingWindow.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// DefaultWindow is the sliding window length used when none is configured.
const DefaultWindow = 60 * time.Second

// Decision is the result of a SlidingWindow.CheckLimit call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter int // seconds; only meaningful when Allowed is false
}

// SlidingWindow is a sliding-window-log limiter: each identifier owns an
// ordered sequence of admitted-request timestamps within the active window.
// Safe for concurrent use.
type SlidingWindow struct {
	mu       sync.Mutex
	windowMs time.Duration
	seqs     map[string][]time.Time
}

// NewSlidingWindow creates a limiter with the given window length. A
// non-positive window falls back to DefaultWindow.
func NewSlidingWindow(window time.Duration) *SlidingWindow {
	if window <= 0 {
		window = DefaultWindow
	}
	return &SlidingWindow{windowMs: window, seqs: make(map[string][]time.Time)}
}

// CheckLimit atomically: drops timestamps older than the window, and either
// admits the request (appending now to the sequence) or denies it with a
// RetryAfter computed from the oldest timestamp in the window.
func (s *SlidingWindow) CheckLimit(id string, limit int) Decision {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.dropExpiredLocked(id, now)

	if len(seq) >= limit {
		oldest := seq[0]
		retryAfter := int(math.Ceil(oldest.Add(s.windowMs).Sub(now).Seconds()))
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retryAfter}
	}

	seq = append(seq, now)
	s.seqs[id] = seq
	return Decision{Allowed: true, Remaining: limit - len(seq)}
}

// dropExpiredLocked removes timestamps <= now-window from id's sequence.
// Caller must hold s.mu.
func (s *SlidingWindow) dropExpiredLocked(id string, now time.Time) []time.Time {
	seq := s.seqs[id]
	cutoff := now.Add(-s.windowMs)
	i := 0
	for i < len(seq) && !seq[i].After(cutoff) {
		i++
	}
	if i > 0 {
		seq = seq[i:]
	}
	s.seqs[id] = seq
	return seq
}

// Cleanup prunes expired timestamps across all identifiers and removes
// identifiers left with an empty sequence. Intended to be invoked
// periodically by a background ticker.
func (s *SlidingWindow) Cleanup() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.seqs {
		seq := s.dropExpiredLocked(id, now)
		if len(seq) == 0 {
			delete(s.seqs, id)
		}
	}
}

// RunCleanupLoop starts a background goroutine invoking Cleanup on the given
// interval until stop is closed.
func (s *SlidingWindow) RunCleanupLoop(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}
