package gateway

import (
	"context"
	"net"
	"strings"
	"syscall"
)

// Endpoint is one TCP bind address the dispatcher should listen on.
// Host is empty for "any address" (the config file's "*").
type Endpoint struct {
	Host string
	Port string
}

// openListener opens one TCP listener for ep. A literal IPv6 host gets
// IPV6_V6ONLY set so an adjacent IPv4 listener on the same port can
// coexist (§4.F); the wildcard host uses Go's normal dual-stack
// "tcp"/":port" listen, matching the historic "any address" bind.
func openListener(ep Endpoint) (net.Listener, error) {
	network := "tcp"
	switch {
	case ep.Host == "":
		network = "tcp"
	case strings.Contains(ep.Host, ":"):
		network = "tcp6"
	default:
		network = "tcp4"
	}

	control := reuseAddrControl
	if network == "tcp" {
		// The dual-stack socket reaches Control as "tcp6"; keep it
		// dual-stack by not setting IPV6_V6ONLY on it.
		control = func(_, address string, c syscall.RawConn) error {
			return reuseAddrControl(network, address, c)
		}
	}

	lc := net.ListenConfig{Control: control}
	return lc.Listen(context.Background(), network, net.JoinHostPort(ep.Host, ep.Port))
}

// reuseAddrControl sets SO_REUSEADDR and, for IPv6 sockets, IPV6_V6ONLY,
// using the standard syscall package rather than golang.org/x/sys/unix —
// the pattern the retrieved pack's own multicast/listener code uses
// (see DESIGN.md).
func reuseAddrControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
		if sockErr == nil && strings.HasSuffix(network, "6") {
			sockErr = syscall.SetsockoptInt(int(fd), syscall.IPPROTO_IPV6, syscall.IPV6_V6ONLY, 1)
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}
