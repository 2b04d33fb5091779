// Package urlkey produces a canonical form of a URL suitable as a cache or
// deduplication key. No other package in this module calls it: the
// escalation engine keys the response cache by the URL exactly as given.
package urlkey

import (
	"net/url"
	"sort"
	"strings"
)

// Normalize returns the canonical form of a URL: lowercase host, default
// ports stripped, fragment removed, empty path replaced with "/", and query
// parameters sorted lexicographically by key while preserving duplicate-key
// occurrences in sorted-then-original order.
//
// Normalize is idempotent: Normalize(Normalize(u)) == Normalize(u). If the
// URL fails to parse, the trimmed original string is returned unchanged.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)

	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return trimmed
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(stripDefaultPort(u.Scheme, u.Host))
	u.Fragment = ""
	u.RawFragment = ""

	if u.Path == "" {
		u.Path = "/"
	}

	if u.RawQuery != "" {
		u.RawQuery = sortedQuery(u.RawQuery)
	}

	return u.String()
}

// stripDefaultPort removes ":80" from http hosts and ":443" from https hosts.
func stripDefaultPort(scheme, host string) string {
	hostname, port := splitHostPort(host)
	if port == "" {
		return host
	}
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		return hostname
	}
	return host
}

// splitHostPort splits "host:port" without requiring a valid net.SplitHostPort
// (which rejects bracket-less IPv6). Returns ("", "") input unchanged if there
// is no colon, or bracketed IPv6 passes through untouched.
func splitHostPort(host string) (string, string) {
	if strings.HasPrefix(host, "[") {
		// bracketed IPv6 literal, optionally with a port after "]:"
		if idx := strings.LastIndex(host, "]:"); idx != -1 {
			return host[:idx+1], host[idx+2:]
		}
		return host, ""
	}
	idx := strings.LastIndex(host, ":")
	if idx == -1 {
		return host, ""
	}
	return host[:idx], host[idx+1:]
}

// sortedQuery sorts query parameters by key (stable), preserving the
// original relative order of values sharing the same key.
func sortedQuery(rawQuery string) string {
	pairs := strings.Split(rawQuery, "&")
	type kv struct {
		key  string
		pair string
	}
	kvs := make([]kv, 0, len(pairs))
	for _, p := range pairs {
		if p == "" {
			continue
		}
		key := p
		if idx := strings.IndexByte(p, '='); idx != -1 {
			key = p[:idx]
		}
		k, err := url.QueryUnescape(key)
		if err != nil {
			k = key
		}
		kvs = append(kvs, kv{key: k, pair: p})
	}
	sort.SliceStable(kvs, func(i, j int) bool { return kvs[i].key < kvs[j].key })

	parts := make([]string, len(kvs))
	for i, e := range kvs {
		parts[i] = e.pair
	}
	return strings.Join(parts, "&")
}
