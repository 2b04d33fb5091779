package respcache

import (
	"fmt"
	"testing"
	"time"
)

func TestSetGet_FreshHit(t *testing.T) {
	c := New()
	c.Set("u", "R")
	if v, ok := c.Get("u"); !ok || v != "R" {
		t.Fatalf("Get() = %v, %v; want R, true", v, ok)
	}
}

func TestGet_StaleReturnsNilButSWRReturnsStale(t *testing.T) {
	c := New()
	if err := c.SetTTL(50 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	c.Set("u", "R")

	time.Sleep(25 * time.Millisecond)
	if v, ok := c.Get("u"); !ok || v != "R" {
		t.Fatalf("expected fresh hit before TTL, got %v %v", v, ok)
	}

	time.Sleep(50 * time.Millisecond) // now past TTL (75ms > 50ms)
	if _, ok := c.Get("u"); ok {
		t.Error("Get() should miss once stale")
	}
	res, ok := c.GetWithSWR("u")
	if !ok || !res.Stale || res.Value != "R" {
		t.Fatalf("GetWithSWR() = %+v, %v; want stale=true value=R", res, ok)
	}
}

func TestMaxEntries_EvictsLRU(t *testing.T) {
	c := New()
	for i := 0; i < MaxEntries+10; i++ {
		c.Set(key(i), i)
	}
	if c.Len() > MaxEntries {
		t.Errorf("cache exceeded MaxEntries: %d", c.Len())
	}
	// The earliest keys should have been evicted (LRU).
	if _, ok := c.Get(key(0)); ok {
		t.Error("expected earliest key evicted under LRU pressure")
	}
	if _, ok := c.Get(key(MaxEntries + 9)); !ok {
		t.Error("expected most recent key to remain cached")
	}
}

func TestMarkRevalidating_SingleFlight(t *testing.T) {
	c := New()
	if err := c.SetTTL(10 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	c.Set("u", "R")
	time.Sleep(20 * time.Millisecond) // now stale

	if !c.MarkRevalidating("u") {
		t.Fatal("expected first MarkRevalidating to succeed")
	}
	if c.MarkRevalidating("u") {
		t.Error("expected concurrent MarkRevalidating to fail (single-flight)")
	}
}

func TestMarkRevalidating_RetryAfterTimeout(t *testing.T) {
	c := New()
	if err := c.SetTTL(10 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	c.Set("u", "R")
	time.Sleep(20 * time.Millisecond)

	if !c.MarkRevalidating("u") {
		t.Fatal("expected first MarkRevalidating to succeed")
	}

	// A revalidation that began within RevalidationTimeout still blocks.
	if c.MarkRevalidating("u") {
		t.Error("expected MarkRevalidating to still block shortly after first")
	}

	// Backdate the in-flight revalidation past RevalidationTimeout; the
	// guard then lets a new attempt through.
	c.mu.Lock()
	c.entries["u"].revalidatingAt = time.Now().Add(-RevalidationTimeout - time.Second)
	c.mu.Unlock()
	if !c.MarkRevalidating("u") {
		t.Error("expected MarkRevalidating to succeed once the prior attempt exceeded RevalidationTimeout")
	}
}

func TestSetTTL_RejectsNonPositive(t *testing.T) {
	c := New()
	if err := c.SetTTL(0); err == nil {
		t.Error("expected error for zero TTL")
	}
	if err := c.SetTTL(-time.Second); err == nil {
		t.Error("expected error for negative TTL")
	}
}

func TestClear(t *testing.T) {
	c := New()
	c.Set("u", "R")
	c.Clear()
	if _, ok := c.Get("u"); ok {
		t.Error("expected cache empty after Clear")
	}
}

func key(i int) string {
	return fmt.Sprintf("k%d", i)
}
