package enginesupport

import (
	"testing"
	"time"
)

func TestDomainMemory_SetGet(t *testing.T) {
	dm := NewDomainMemory(time.Hour)
	defer dm.Stop()

	if got := dm.Get("example.com"); got != "" {
		t.Fatalf("Get() on empty memory = %q, want empty", got)
	}
	dm.Set("example.com", "stealth")
	if got := dm.Get("example.com"); got != "stealth" {
		t.Fatalf("Get() = %q, want stealth", got)
	}
}

func TestDomainMemory_Expires(t *testing.T) {
	dm := NewDomainMemory(20 * time.Millisecond)
	defer dm.Stop()

	dm.Set("example.com", "browser")
	time.Sleep(30 * time.Millisecond)
	if got := dm.Get("example.com"); got != "" {
		t.Fatalf("Get() after expiry = %q, want empty", got)
	}
}

func TestDomainMemory_Delete(t *testing.T) {
	dm := NewDomainMemory(time.Hour)
	defer dm.Stop()

	dm.Set("example.com", "plain")
	dm.Delete("example.com")
	if got := dm.Get("example.com"); got != "" {
		t.Fatalf("Get() after Delete = %q, want empty", got)
	}
}
