package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// managementServer exposes Prometheus metrics and a small JSON status
// endpoint on a separate listener, additive to the relay path and safe
// to leave disabled (§4.F expansion).
type managementServer struct {
	addr   string
	d      *Dispatcher
	server *http.Server
}

func newManagementServer(addr string, d *Dispatcher) *managementServer {
	return &managementServer{addr: addr, d: d}
}

type statusResponse struct {
	UptimeSeconds float64  `json:"uptime_seconds"`
	Uptime        string   `json:"uptime"`
	Started       string   `json:"started"`
	ActiveStreams int64    `json:"active_streams"`
	Services      []string `json:"services"`
}

func (m *managementServer) start() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status", m.handleStatus)

	m.server = &http.Server{Addr: m.addr, Handler: mux}

	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		return err
	}
	go m.server.Serve(ln)
	return nil
}

func (m *managementServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		UptimeSeconds: m.d.Uptime().Seconds(),
		Uptime:        humanize.RelTime(m.d.startTime, m.d.startTime.Add(m.d.Uptime()), "", ""),
		Started:       humanize.Time(m.d.startTime),
		ActiveStreams: m.d.ActiveStreams(),
		Services:      m.d.cfg.Registry.Paths(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (m *managementServer) stop() {
	if m.server != nil {
		m.server.Shutdown(context.Background())
	}
}
