package dnscache

import (
	"context"
	"testing"
)

type fakeResolver struct {
	hosts map[string][]string
	calls int
}

func (f *fakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	f.calls++
	return f.hosts[host], nil
}

func TestPick_LiteralIPBypassesCache(t *testing.T) {
	c := NewWithResolver(&fakeResolver{})
	ip, err := c.Pick(context.Background(), "1.2.3.4", false)
	if err != nil {
		t.Fatalf("Pick returned error: %v", err)
	}
	if ip != "1.2.3.4" {
		t.Errorf("Pick() = %q, want 1.2.3.4", ip)
	}
}

func TestPick_ResolvesAndCachesThenRoundRobins(t *testing.T) {
	fr := &fakeResolver{hosts: map[string][]string{
		"example.com": {"10.0.0.1", "10.0.0.2", "10.0.0.3"},
	}}
	c := NewWithResolver(fr)

	seen := make(map[string]bool)
	for i := 0; i < 6; i++ {
		ip, err := c.Pick(context.Background(), "example.com", false)
		if err != nil {
			t.Fatalf("Pick error: %v", err)
		}
		seen[ip] = true
	}
	if len(seen) != 3 {
		t.Errorf("expected round-robin to visit all 3 addresses, saw %v", seen)
	}
	if fr.calls != 1 {
		t.Errorf("expected exactly 1 resolver call (subsequent picks hit cache), got %d", fr.calls)
	}
}

func TestGetCached_MissWhenAbsent(t *testing.T) {
	c := New()
	if _, ok := c.GetCached("nowhere.invalid"); ok {
		t.Error("expected cache miss for unknown host")
	}
}

func TestClear(t *testing.T) {
	fr := &fakeResolver{hosts: map[string][]string{"a.com": {"1.1.1.1"}}}
	c := NewWithResolver(fr)
	_, _ = c.ResolveAndCache(context.Background(), "a.com")
	if _, ok := c.GetCached("a.com"); !ok {
		t.Fatal("expected cache hit before Clear")
	}
	c.Clear()
	if _, ok := c.GetCached("a.com"); ok {
		t.Error("expected cache miss after Clear")
	}
}
