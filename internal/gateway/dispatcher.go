// Package gateway binds the configured listening addresses, accepts
// client connections, and runs the admission gate and client roster
// around each spawned session.Worker (§4.F, §4.G).
package gateway

import (
	"net"
	"sync"
	"time"

	"github.com/oskar456/rtp2httpd/internal/gwerr"
	"github.com/oskar456/rtp2httpd/internal/logging"
	"github.com/oskar456/rtp2httpd/internal/metrics"
	"github.com/oskar456/rtp2httpd/internal/recovery"
	"github.com/oskar456/rtp2httpd/internal/registry"
	"github.com/oskar456/rtp2httpd/internal/resolver"
	"github.com/oskar456/rtp2httpd/internal/session"
)

// defaultMaxListeners is the historic cap (10) rounded up to the
// configurable default named in §4.F.
const defaultMaxListeners = 16

// Config holds everything the dispatcher needs to start.
type Config struct {
	Binds         []Endpoint
	MaxClients    int
	MaxListeners  int // 0 means defaultMaxListeners
	ServerIdent   string
	Registry      *registry.Registry
	Resolver      *resolver.Resolver
	Logger        *logging.Logger
	Metrics       *metrics.Metrics
	MetricsListen string // empty disables the management listener
}

// Dispatcher owns the listening sockets, the client roster, and the
// optional management HTTP server.
type Dispatcher struct {
	cfg       Config
	listeners []net.Listener
	roster    *roster[net.Conn]
	mgmt      *managementServer
	startTime time.Time

	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New builds a Dispatcher from cfg without opening any sockets yet.
func New(cfg Config) *Dispatcher {
	if cfg.MaxListeners <= 0 {
		cfg.MaxListeners = defaultMaxListeners
	}
	return &Dispatcher{
		cfg:    cfg,
		roster: newRoster[net.Conn](),
		stopCh: make(chan struct{}),
	}
}

// Start opens every configured listener (skipping the rest once
// MaxListeners is reached, per-endpoint failures only warn when at
// least one listener succeeds) and begins accepting connections. It
// also starts the management HTTP server when MetricsListen is set.
func (d *Dispatcher) Start() error {
	d.startTime = time.Now()

	var firstErr error
	for _, ep := range d.cfg.Binds {
		if len(d.listeners) >= d.cfg.MaxListeners {
			d.cfg.Logger.Log(logging.Error, "gateway: skipping bind %s:%s, MaxListeners (%d) reached", ep.Host, ep.Port, d.cfg.MaxListeners)
			continue
		}
		ln, err := openListener(ep)
		if err != nil {
			d.cfg.Logger.Log(logging.Error, "gateway: failed to listen on %s:%s: %v", ep.Host, ep.Port, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		d.listeners = append(d.listeners, ln)
		d.cfg.Logger.Log(logging.Info, "gateway: listening on %s", ln.Addr())
	}

	if len(d.listeners) == 0 {
		return gwerr.New(gwerr.ListenFailure, "gateway.Start", firstErr)
	}

	for _, ln := range d.listeners {
		d.wg.Add(1)
		go d.acceptLoop(ln)
	}

	if d.cfg.MetricsListen != "" {
		d.mgmt = newManagementServer(d.cfg.MetricsListen, d)
		if err := d.mgmt.start(); err != nil {
			d.cfg.Logger.Log(logging.Error, "gateway: management listener failed: %v", err)
			d.mgmt = nil
		}
	}

	return nil
}

// Stop closes every listener and active connection and waits for all
// accept/session goroutines to exit.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
		for _, ln := range d.listeners {
			ln.Close()
		}
		d.roster.closeAll()
		if d.mgmt != nil {
			d.mgmt.stop()
		}
	})
	d.wg.Wait()
}

// ActiveStreams reports the current client roster size.
func (d *Dispatcher) ActiveStreams() int64 { return d.roster.Count() }

// Uptime reports how long the dispatcher has been accepting connections.
func (d *Dispatcher) Uptime() time.Duration { return time.Since(d.startTime) }

func (d *Dispatcher) acceptLoop(ln net.Listener) {
	defer d.wg.Done()
	defer recovery.RecoverWithLog(d.cfg.Logger, "gateway.acceptLoop")
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-d.stopCh:
				return
			default:
				d.cfg.Logger.Log(logging.Error, "gateway: accept on %s failed: %v", ln.Addr(), err)
				continue
			}
		}
		d.wg.Add(1)
		go d.handleConn(conn)
	}
}

// handleConn applies the admission gate's historic "count > max"
// (post-increment) semantics: the roster's add increments the shared
// counter before the worker ever runs, and the worker is handed the
// already-incremented value to decide whether to refuse (§4.G).
func (d *Dispatcher) handleConn(conn net.Conn) {
	defer d.wg.Done()
	defer recovery.RecoverWithLog(d.cfg.Logger, "gateway.handleConn")

	id, count := d.roster.add(conn)
	defer d.roster.remove(id)

	maxClients := int64(d.cfg.MaxClients)
	admit := func() (bool, func()) {
		return count <= maxClients, func() {}
	}

	w := &session.Worker{
		Resolver:    d.cfg.Resolver,
		Logger:      d.cfg.Logger,
		Metrics:     d.cfg.Metrics,
		ServerIdent: d.cfg.ServerIdent,
		Admit:       admit,
	}

	status := w.Serve(conn)
	d.cfg.Logger.Log(logging.Info, "gateway: session from %s ended, exit=%s", conn.RemoteAddr(), status)
}
