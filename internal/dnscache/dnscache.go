// Package dnscache maintains a warmed host -> IPv4 address table shared by
// the fetch transport, so repeated fetches to the same host skip a DNS
// round-trip and so the escalation engine's transport can round-robin across
// known-good addresses.
//
// Grounded on the teacher's engine.DomainMemory (sync.Map + TTL + background
// cleanup goroutine), generalized from "domain -> engine name" to
// "host -> address set with a round-robin cursor".
package dnscache

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// TTL is how long a resolved address set remains valid.
const TTL = 30 * time.Minute

// Address is one resolved IP with its address family (4 or 6).
type Address struct {
	IP     string
	Family int
}

type entry struct {
	ips       []string
	expiresAt time.Time
	cursor    atomic.Uint64
}

func (e *entry) expired(now time.Time) bool { return now.After(e.expiresAt) }

// Resolver performs the actual network resolution. net.DefaultResolver
// satisfies this via its LookupHost method.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Cache is a warmed, self-pruning host -> IPv4 table. Safe for concurrent use.
type Cache struct {
	mu       sync.RWMutex
	store    map[string]*entry
	resolver Resolver
	warmOnce sync.Once
}

// New creates an empty Cache using net.DefaultResolver for resolution.
func New() *Cache {
	return &Cache{
		store:    make(map[string]*entry),
		resolver: net.DefaultResolver,
	}
}

// NewWithResolver creates a Cache using a custom Resolver (for tests).
func NewWithResolver(r Resolver) *Cache {
	return &Cache{store: make(map[string]*entry), resolver: r}
}

// GetCached returns the cached IPv4 set for host, pruning it first if expired.
func (c *Cache) GetCached(host string) ([]string, bool) {
	now := time.Now()

	c.mu.RLock()
	e, ok := c.store[host]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.expired(now) {
		c.mu.Lock()
		delete(c.store, host)
		c.mu.Unlock()
		return nil, false
	}
	return e.ips, true
}

// ResolveAndCache resolves host, keeping only IPv4 addresses, and stores the
// result with a fresh TTL. An answer with no IPv4 address returns an error
// and stores nothing, so a stored set is never empty.
func (c *Cache) ResolveAndCache(ctx context.Context, host string) ([]string, error) {
	addrs, err := c.resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}

	ipv4 := make([]string, 0, len(addrs))
	for _, a := range addrs {
		ip := net.ParseIP(a)
		if ip != nil && ip.To4() != nil {
			ipv4 = append(ipv4, ip.String())
		}
	}
	if len(ipv4) == 0 {
		return nil, &net.DNSError{Err: "no A records", Name: host}
	}

	c.mu.Lock()
	c.store[host] = &entry{ips: ipv4, expiresAt: time.Now().Add(TTL)}
	c.mu.Unlock()

	return ipv4, nil
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.store = make(map[string]*entry)
	c.mu.Unlock()
}

// Warmup resolves a fixed domain list asynchronously and best-effort; it runs
// at most once per Cache instance regardless of how many times it is called.
// Individual resolution failures are logged at Debug and otherwise ignored.
func (c *Cache) Warmup(ctx context.Context, domains []string) {
	c.warmOnce.Do(func() {
		for _, d := range domains {
			go func(host string) {
				if _, err := c.ResolveAndCache(ctx, host); err != nil {
					slog.Debug("dnscache: warmup resolve failed", "host", host, "error", err)
				}
			}(d)
		}
	})
}

// Pick selects one address from the cached set for host using round-robin
// rotation, resolving on miss. If host is already a literal IP, it is
// returned immediately without any cache interaction. IPv6 requests always
// bypass the cache.
func (c *Cache) Pick(ctx context.Context, host string, wantIPv6 bool) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}
	if wantIPv6 {
		addrs, err := c.resolver.LookupHost(ctx, host)
		if err != nil {
			return "", err
		}
		for _, a := range addrs {
			if ip := net.ParseIP(a); ip != nil && ip.To4() == nil {
				return a, nil
			}
		}
		return "", &net.DNSError{Err: "no AAAA records", Name: host}
	}

	if ips, ok := c.GetCached(host); ok && len(ips) > 0 {
		return c.roundRobin(host, ips), nil
	}

	ips, err := c.ResolveAndCache(ctx, host)
	if err != nil {
		// Fall back to system resolution on resolve error.
		addrs, sysErr := net.DefaultResolver.LookupHost(ctx, host)
		if sysErr != nil || len(addrs) == 0 {
			return "", err
		}
		return addrs[0], nil
	}
	return c.roundRobin(host, ips), nil
}

// PickAll returns the full tagged address list for host, for callers that
// want every known address rather than one rotated pick.
func (c *Cache) PickAll(ctx context.Context, host string) ([]Address, error) {
	ips, ok := c.GetCached(host)
	if !ok {
		var err error
		ips, err = c.ResolveAndCache(ctx, host)
		if err != nil {
			return nil, err
		}
	}
	out := make([]Address, len(ips))
	for i, ip := range ips {
		out[i] = Address{IP: ip, Family: 4}
	}
	return out, nil
}

// roundRobin advances the per-host cursor (wrapping naturally on uint64
// overflow) and selects ips[cursor % len(ips)].
func (c *Cache) roundRobin(host string, ips []string) string {
	c.mu.RLock()
	e := c.store[host]
	c.mu.RUnlock()
	if e == nil {
		return ips[0]
	}
	n := e.cursor.Add(1)
	return ips[n%uint64(len(ips))]
}

// DialContext is a resolver hook shaped for http.Transport.DialContext: it
// resolves addr's host through the cache (round-robin across the known
// address set) before dialing, falling back to the address unchanged on any
// cache error so the standard dialer/resolver handles it.
func (c *Cache) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		host, port = addr, ""
	}

	ip, pickErr := c.Pick(ctx, host, network == "tcp6")
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	if pickErr != nil || ip == "" {
		return dialer.DialContext(ctx, network, addr)
	}

	target := ip
	if port != "" {
		target = net.JoinHostPort(ip, port)
	}
	return dialer.DialContext(ctx, network, target)
}
