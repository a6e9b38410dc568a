package relay

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/oskar456/rtp2httpd/internal/registry"
)

// multicastSocket is a joined multicast group, abstracting the IPv4/IPv6
// API split in golang.org/x/net behind a single ReadFrom/Close surface.
type multicastSocket struct {
	pc   net.PacketConn
	v4   *ipv4.PacketConn
	v6   *ipv6.PacketConn
	isV6 bool
}

// joinGroup opens a UDP socket bound to the descriptor's group port and
// joins the multicast group (source-specific when the descriptor names a
// source), per §4.D.
func joinGroup(desc registry.Descriptor) (*multicastSocket, error) {
	isV6 := desc.Group.IP.To4() == nil
	network := "udp4"
	if isV6 {
		network = "udp6"
	}

	lc := net.ListenConfig{Control: reuseAddrControl}
	pc, err := lc.ListenPacket(context.Background(), network, ":"+strconv.Itoa(desc.Group.Port))
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", network, err)
	}

	group := &net.UDPAddr{IP: desc.Group.IP}
	var source *net.UDPAddr
	if desc.Source != nil {
		source = &net.UDPAddr{IP: desc.Source.IP}
	}

	sock := &multicastSocket{pc: pc, isV6: isV6}
	if isV6 {
		sock.v6 = ipv6.NewPacketConn(pc)
		if source != nil {
			err = sock.v6.JoinSourceSpecificGroup(nil, group, source)
		} else {
			err = sock.v6.JoinGroup(nil, group)
		}
	} else {
		sock.v4 = ipv4.NewPacketConn(pc)
		if source != nil {
			err = sock.v4.JoinSourceSpecificGroup(nil, group, source)
		} else {
			err = sock.v4.JoinGroup(nil, group)
		}
	}
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("join group %s: %w", desc.Group.IP, err)
	}

	return sock, nil
}

func (s *multicastSocket) ReadFrom(buf []byte) (int, net.Addr, error) {
	return s.pc.ReadFrom(buf)
}

func (s *multicastSocket) Close() error {
	return s.pc.Close()
}

// reuseAddrControl sets SO_REUSEADDR (so several services can bind the
// same multicast port) and, on IPv6 sockets, IPV6_V6ONLY (so an IPv4
// listener on the same port is unaffected). This is the pattern the
// retrieved pack's multicast/raw-socket examples use; there is no
// ecosystem library wrapping these setsockopt calls, so plain
// syscall.SetsockoptInt via net.ListenConfig.Control is used directly
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
