// Package security implements the loopback-only HTTP filter: the bridge
// only ever talks to processes on the same machine, so any request whose
// remote address is not loopback, or whose Host doesn't name this
// process's own loopback address, is rejected. The address classification
// below mirrors the shape of the teacher's outbound SSRF guard (private/
// loopback IP range checks) but inverted: that guard blocks private ranges
// to stop outbound requests from reaching internal hosts, while this
// filter allows only loopback and rejects everything else for inbound
// requests.
package security

import (
	"net"
	"strconv"
	"strings"
)

// IsLoopbackHost reports whether host (without port) is a loopback
// address or name: 127.0.0.0/8, ::1, or "localhost".
func IsLoopbackHost(host string) bool {
	normalized := normalizeHost(host)
	if normalized == "" {
		return false
	}
	if normalized == "localhost" {
		return true
	}
	if ip := net.ParseIP(normalized); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// normalizeHost trims whitespace, lowercases, and unwraps IPv6 brackets.
func normalizeHost(host string) string {
	h := strings.TrimSpace(strings.ToLower(host))
	h = strings.TrimSuffix(h, ".")
	if strings.HasPrefix(h, "[") && strings.HasSuffix(h, "]") {
		h = h[1 : len(h)-1]
	}
	return h
}

// IsAllowedHost reports whether host:port (as it would appear in an HTTP
// Host header) names this process's own loopback listener on port.
func IsAllowedHost(hostHeader string, port int) bool {
	host := hostHeader
	if h, p, err := net.SplitHostPort(hostHeader); err == nil {
		host = h
		if pn, err := strconv.Atoi(p); err == nil && pn != port {
			return false
		}
	}
	return IsLoopbackHost(host)
}

// IsAllowedRemoteAddr reports whether a net/http request's RemoteAddr (as
// set by the standard library, "ip:port") originates from loopback.
func IsAllowedRemoteAddr(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return IsLoopbackHost(host)
}
