// Package enginesupport holds infrastructure shared by the escalation engine
// and the browser fetch strategies: a domain->method memory used to
// short-circuit escalation for hosts with a known-good strategy, and an
// adaptive page pool for the browser-backed fetchers.
//
// Grounded on the teacher's engine.DomainMemory and engine.AdaptivePool
// (engine/domain_memory.go, engine/adaptive_pool.go), generalized from
// engine-racing support into the sequential escalation model SPEC_FULL.md
// §4.6 requires.
package enginesupport

import (
	"sync"
	"time"
)

type domainEntry struct {
	method    string
	expiresAt time.Time
}

// DomainMemory remembers which fetch method last succeeded for a domain.
// Entries expire after the configured TTL and are pruned periodically.
type DomainMemory struct {
	store sync.Map // domain -> *domainEntry
	ttl   time.Duration
	stop  chan struct{}
}

// NewDomainMemory creates a DomainMemory with the given TTL and starts a
// background goroutine that prunes expired entries hourly.
func NewDomainMemory(ttl time.Duration) *DomainMemory {
	dm := &DomainMemory{ttl: ttl, stop: make(chan struct{})}
	go dm.cleanupLoop()
	return dm
}

// Get returns the remembered method for domain, or "" if absent/expired.
func (dm *DomainMemory) Get(domain string) string {
	val, ok := dm.store.Load(domain)
	if !ok {
		return ""
	}
	e := val.(*domainEntry)
	if time.Now().After(e.expiresAt) {
		dm.store.Delete(domain)
		return ""
	}
	return e.method
}

// Set records which method succeeded for domain.
func (dm *DomainMemory) Set(domain, method string) {
	dm.store.Store(domain, &domainEntry{method: method, expiresAt: time.Now().Add(dm.ttl)})
}

// Delete removes the memory for domain (e.g. after the remembered method fails).
func (dm *DomainMemory) Delete(domain string) {
	dm.store.Delete(domain)
}

// Stop terminates the background cleanup goroutine.
func (dm *DomainMemory) Stop() {
	close(dm.stop)
}

func (dm *DomainMemory) cleanupLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-dm.stop:
			return
		case <-ticker.C:
			now := time.Now()
			dm.store.Range(func(key, value any) bool {
				if now.After(value.(*domainEntry).expiresAt) {
					dm.store.Delete(key)
				}
				return true
			})
		}
	}
}
