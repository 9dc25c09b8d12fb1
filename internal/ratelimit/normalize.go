package ratelimit

import (
	"net"
	"net/url"
	"strings"
)

// normalizeDomain canonicalizes a domain/host string for use as a bucket
// key. It never fails: an unparsable value just falls back to its trimmed,
// lowercased form so a malformed domain still gets its own bucket instead
// of aborting the fetch.
func normalizeDomain(value string) string {
	host := strings.ToLower(strings.TrimSpace(value))
	if host == "" {
		return host
	}
	if strings.Contains(host, "://") {
		if u, err := url.Parse(host); err == nil && u.Host != "" {
			host = strings.ToLower(u.Host)
		}
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		return host
	}
	base, port := host, ""
	if strings.ContainsRune(host, ':') {
		if h, p, err := net.SplitHostPort(host); err == nil {
			base, port = strings.ToLower(h), p
		}
	}
	if strings.Contains(base, ":") && !strings.HasPrefix(base, "[") {
		base = "[" + base + "]"
	}
	switch port {
	case "", "0", "80", "443":
		return base
	default:
		return base + ":" + port
	}
}
