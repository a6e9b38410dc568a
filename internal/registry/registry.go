// Package registry holds the static mapping from URL path to upstream
// multicast endpoint, built once at startup from configuration and never
// mutated afterwards (§3, §4.A of the design).
package registry

import (
	"fmt"
	"net"
	"strings"
)

// Framing identifies how datagrams received for a service must be
// interpreted before being written to the client.
type Framing int

const (
	// RTP packets are parsed per RFC 3550 and only the media payload is
	// forwarded.
	RTP Framing = iota
	// UDPRaw datagrams are forwarded to the client verbatim.
	UDPRaw
)

func (f Framing) String() string {
	if f == RTP {
		return "RTP"
	}
	return "UDP_RAW"
}

// ParseFraming maps a config-file service type token to a Framing.
func ParseFraming(token string) (Framing, error) {
	switch strings.ToUpper(token) {
	case "MRTP", "RTP":
		return RTP, nil
	case "MUDP", "UDP_RAW", "UDP":
		return UDPRaw, nil
	default:
		return 0, fmt.Errorf("registry: unsupported service type %q", token)
	}
}

// Descriptor is an immutable service entry: a URL path bound to a
// multicast group (and, for SSM, an expected source).
type Descriptor struct {
	URLPath string
	Framing Framing
	Group   *net.UDPAddr
	Source  *net.UDPAddr // nil unless source-specific multicast is configured
}

// Tuple is the raw, pre-resolution input accepted from the configuration
// layer for one service declaration.
type Tuple struct {
	URLPath    string
	Framing    string
	GroupHost  string
	GroupPort  string
	SourceHost string // optional
	SourcePort string // optional
}

// Resolver resolves a host/port pair to a UDP socket address, restricted
// to datagram sockets, matching the "OS name-resolution facility
// restricted to datagram sockets" requirement of §4.A. Production code
// passes net.ResolveUDPAddr; tests can substitute a stub.
type Resolver func(network, address string) (*net.UDPAddr, error)

// DefaultResolver resolves using net.ResolveUDPAddr on the given network;
// Build passes "udp", which accepts both IPv4 and IPv6 literals.
func DefaultResolver(network, address string) (*net.UDPAddr, error) {
	return net.ResolveUDPAddr(network, address)
}

// Registry is the read-only, built-once service table.
type Registry struct {
	services map[string]Descriptor
}

// Warning describes a non-fatal condition encountered while building the
// registry (e.g. an unresolvable or ambiguous address); it never aborts
// the build, matching the "warning is emitted, first address wins"
// behavior of §4.A.
type Warning struct {
	Tuple Tuple
	Err   error
}

func (w Warning) Error() string {
	return fmt.Sprintf("registry: service %q: %v", w.Tuple.URLPath, w.Err)
}

// Build resolves each tuple and returns the resulting registry along with
// any non-fatal warnings (unresolvable tuples are skipped, not fatal;
// a registry is still returned for the tuples that did resolve).
func Build(tuples []Tuple, resolve Resolver) (*Registry, []Warning) {
	if resolve == nil {
		resolve = DefaultResolver
	}

	r := &Registry{services: make(map[string]Descriptor, len(tuples))}
	var warnings []Warning

	for _, t := range tuples {
		framing, err := ParseFraming(t.Framing)
		if err != nil {
			warnings = append(warnings, Warning{Tuple: t, Err: err})
			continue
		}

		group, err := resolve("udp", net.JoinHostPort(t.GroupHost, t.GroupPort))
		if err != nil {
			warnings = append(warnings, Warning{Tuple: t, Err: fmt.Errorf("resolve group: %w", err)})
			continue
		}
		if !group.IP.IsMulticast() {
			warnings = append(warnings, Warning{Tuple: t, Err: fmt.Errorf("%s is not a multicast address", group.IP)})
			continue
		}

		var source *net.UDPAddr
		if t.SourceHost != "" {
			sport := t.SourcePort
			if sport == "" {
				sport = "0"
			}
			source, err = resolve("udp", net.JoinHostPort(t.SourceHost, sport))
			if err != nil {
				warnings = append(warnings, Warning{Tuple: t, Err: fmt.Errorf("resolve source: %w", err)})
				continue
			}
		}

		// Later declarations for the same path win (map semantics).
		r.services[t.URLPath] = Descriptor{
			URLPath: t.URLPath,
			Framing: framing,
			Group:   group,
			Source:  source,
		}
	}

	return r, warnings
}

// Lookup returns the descriptor exactly matching path, if any.
func (r *Registry) Lookup(path string) (Descriptor, bool) {
	if r == nil {
		return Descriptor{}, false
	}
	d, ok := r.services[path]
	return d, ok
}

// Len reports the number of distinct registered services.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.services)
}

// Paths returns the registered URL paths in no particular order, for
// status reporting.
func (r *Registry) Paths() []string {
	if r == nil {
		return nil
	}
	paths := make([]string, 0, len(r.services))
	for p := range r.services {
		paths = append(paths, p)
	}
	return paths
}
