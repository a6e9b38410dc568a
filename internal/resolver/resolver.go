// Package resolver maps an inbound HTTP request path to a service
// descriptor, either via the pre-declared registry or, when enabled, by
// parsing the dynamic UDPxy-compatible URL grammar (§4.B).
package resolver

import (
	"net"
	"net/url"
	"strings"

	"github.com/oskar456/rtp2httpd/internal/registry"
)

// Resolver resolves request paths against a registry and, optionally, the
// UDPxy grammar.
type Resolver struct {
	registry    *registry.Registry
	udpxy       bool
	resolveAddr registry.Resolver
}

// New builds a Resolver. resolveAddr may be nil to use
// registry.DefaultResolver.
func New(reg *registry.Registry, udpxyEnabled bool, resolveAddr registry.Resolver) *Resolver {
	if resolveAddr == nil {
		resolveAddr = registry.DefaultResolver
	}
	return &Resolver{registry: reg, udpxy: udpxyEnabled, resolveAddr: resolveAddr}
}

// Resolve implements the four-step algorithm of §4.B: strip to the final
// path segment, try an exact registry match, then (if enabled) the UDPxy
// grammar, else report not-found.
func (r *Resolver) Resolve(path string) (registry.Descriptor, bool) {
	seg := lastSegment(path)

	if d, ok := r.registry.Lookup(seg); ok {
		return d, true
	}

	if !r.udpxy {
		return registry.Descriptor{}, false
	}

	d, ok := r.parseUDPxy(path)
	return d, ok
}

func lastSegment(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// parseUDPxy implements the dynamic grammar: /rtp/<host>[:port] or
// /udp/<host>[:port], with percent-decoding and bracketed IPv6 literal
// support, default port 1234.
func (r *Resolver) parseUDPxy(path string) (registry.Descriptor, bool) {
	var framing registry.Framing
	switch {
	case strings.HasPrefix(path, "/rtp/"):
		framing = registry.RTP
	case strings.HasPrefix(path, "/udp/"):
		framing = registry.UDPRaw
	default:
		return registry.Descriptor{}, false
	}

	raw := lastSegment(path)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return registry.Descriptor{}, false
	}

	host, port, ok := splitHostPort(decoded)
	if !ok {
		return registry.Descriptor{}, false
	}

	addr, err := r.resolveAddr("udp", net.JoinHostPort(host, port))
	if err != nil {
		return registry.Descriptor{}, false
	}

	return registry.Descriptor{URLPath: raw, Framing: framing, Group: addr}, true
}

// splitHostPort handles both "host:port" and bracketed "[host]:port"
// (IPv6) forms, defaulting to port 1234 when no port is present.
func splitHostPort(s string) (host, port string, ok bool) {
	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return "", "", false
		}
		host = s[1:end]
		rest := s[end+1:]
		if strings.HasPrefix(rest, ":") {
			port = rest[1:]
		} else {
			port = "1234"
		}
		return host, port, true
	}

	if idx := strings.LastIndexByte(s, ':'); idx >= 0 {
		return s[:idx], s[idx+1:], true
	}
	return s, "1234", true
}
