// Package relay joins a multicast group and streams its datagrams to a
// single client connection until the client disconnects, the upstream
// goes quiet, or the write to the client fails (§4.D).
package relay

import (
	"errors"
	"net"
	"time"

	"github.com/oskar456/rtp2httpd/internal/gwerr"
	"github.com/oskar456/rtp2httpd/internal/logging"
	"github.com/oskar456/rtp2httpd/internal/metrics"
	"github.com/oskar456/rtp2httpd/internal/netio"
	"github.com/oskar456/rtp2httpd/internal/recovery"
	"github.com/oskar456/rtp2httpd/internal/registry"
	"github.com/oskar456/rtp2httpd/internal/rtp"
)

// datagramBufSize comfortably covers a UDP/RTP payload over Ethernet,
// including the historic IP fragmentation allowance the original
// relay loop relied on.
const datagramBufSize = 64 * 1024

// idleTimeout is how long the relay waits for a datagram before giving
// up on an upstream that has gone silent (§4.D suspension points).
const idleTimeout = 5 * time.Second

type datagram struct {
	buf []byte
	n   int
	err error
}

// packetSource is the minimal surface relay needs from a joined
// multicast socket; satisfied by *multicastSocket in production and by
// a plain net.PacketConn in tests, which exercise the loop over a
// unicast loopback socket instead of a real IGMP join (§8).
type packetSource interface {
	ReadFrom(buf []byte) (int, net.Addr, error)
	Close() error
}

// Run joins desc's multicast group and relays its datagrams to conn
// until termination, at which point it returns nil for a clean client
// disconnect or a *gwerr.Error identifying why the relay ended.
func Run(conn net.Conn, desc registry.Descriptor, serviceName string, log *logging.Logger, m *metrics.Metrics) error {
	joinStart := time.Now()
	sock, err := joinGroup(desc)
	if err != nil {
		m.RecordUpstreamJoinFailure(serviceName)
		return gwerr.New(gwerr.UpstreamJoinFailure, "relay.Run", err)
	}
	defer sock.Close()
	m.RecordUpstreamJoin(time.Since(joinStart).Seconds())

	log.Log(logging.Info, "relay: joined group for service %q, framing=%s", serviceName, desc.Framing)

	return runLoop(conn, sock, desc.Framing, serviceName, log, m, idleTimeout)
}

// runLoop drives the relay's suspension points over an already-opened
// packet source: one goroutine feeds datagrams off the socket, another
// watches the client connection for readability-as-disconnect, and the
// select below multiplexes both against an idle timer (§4.D). timeout is
// a parameter rather than the package constant so tests can exercise the
// stall path without waiting the full 5 seconds.
func runLoop(conn net.Conn, sock packetSource, framing registry.Framing, serviceName string, log *logging.Logger, m *metrics.Metrics, timeout time.Duration) error {
	state := StateJoining

	datagrams := make(chan datagram, 4)
	go readLoop(sock, datagrams, log)

	closed := make(chan struct{})
	go watchClientClosed(conn, closed, log)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var haveSeq bool
	var lastSeq uint16

	for {
		select {
		case d := <-datagrams:
			if d.err != nil {
				return gwerr.New(gwerr.UpstreamReadFailure, "relay.Run", d.err)
			}

			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(timeout)

			m.RecordPacketReceived(serviceName)
			payload, ok := extractPayload(framing, d.buf[:d.n], serviceName, &haveSeq, &lastSeq, m, log)
			if !ok {
				continue
			}
			if len(payload) == 0 {
				continue
			}

			if err := netio.WriteAll(conn, payload); err != nil {
				return gwerr.New(gwerr.ClientWriteFailure, "relay.Run", err)
			}
			m.RecordBytesRelayed(serviceName, len(payload))
			if state != StateStreaming {
				state = StateStreaming
				log.Log(logging.Debug, "relay: service %q entered state %s", serviceName, state)
			}

		case <-closed:
			log.Log(logging.Debug, "relay: client closed connection for service %q", serviceName)
			return nil

		case <-timer.C:
			state = StateTerminated
			log.Log(logging.Debug, "relay: service %q entered state %s", serviceName, state)
			return gwerr.New(gwerr.UpstreamStalled, "relay.Run",
				errors.New("no datagrams received within idle timeout"))
		}
	}
}

// extractPayload applies framing-specific handling and updates the
// sequence-number bookkeeping: a packet repeating the previous sequence
// number is dropped, and a gap is only counted and logged — the gateway
// never reorders or recovers lost packets (§4.D, Non-goals).
func extractPayload(framing registry.Framing, buf []byte, serviceName string, haveSeq *bool, lastSeq *uint16, m *metrics.Metrics, log *logging.Logger) ([]byte, bool) {
	switch framing {
	case registry.RTP:
		pkt, err := rtp.Parse(buf)
		if err != nil {
			m.RecordPacketDropped(serviceName)
			log.Log(logging.Debug, "relay: dropping malformed RTP packet for %q: %v", serviceName, err)
			return nil, false
		}
		if *haveSeq {
			if pkt.SequenceNumber == *lastSeq {
				m.RecordPacketDuplicate(serviceName)
				log.Log(logging.Debug, "relay: dropping duplicate RTP packet for %q: seq=%d", serviceName, pkt.SequenceNumber)
				return nil, false
			}
			if pkt.SequenceNumber != rtp.NextSequence(*lastSeq) {
				m.RecordPacketOutOfOrder(serviceName)
				log.Log(logging.Debug, "relay: sequence gap for %q (congestion/loss): seq=%d after %d", serviceName, pkt.SequenceNumber, *lastSeq)
			}
		}
		*lastSeq = pkt.SequenceNumber
		*haveSeq = true
		return pkt.Payload, true
	default:
		return buf, true
	}
}

func readLoop(sock packetSource, out chan<- datagram, log *logging.Logger) {
	defer recovery.RecoverWithLog(log, "relay.readLoop")
	buf := make([]byte, datagramBufSize)
	for {
		n, _, err := sock.ReadFrom(buf)
		if err != nil {
			out <- datagram{err: err}
			return
		}
		cp := make([]byte, n)
		copy(cp, buf[:n])
		out <- datagram{buf: cp, n: n}
	}
}

// watchClientClosed blocks reading a single byte from conn; the client
// is not expected to send anything after its request, so any read
// completing (data, EOF, or error) means the client went away. This is
// the goroutine-based translation of "select() on client socket
// readability" from §4.D.
func watchClientClosed(conn net.Conn, closed chan<- struct{}, log *logging.Logger) {
	defer recovery.RecoverWithLog(log, "relay.watchClientClosed")
	buf := make([]byte, 1)
	conn.Read(buf)
	close(closed)
}
