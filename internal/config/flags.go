package config

import (
	"strings"

	"github.com/oskar456/rtp2httpd/internal/logging"
)

// Overrides holds the command-line settings that take precedence over
// whatever a config file declared (§6). A zero-value field means "flag
// not given" — Apply only touches a field when its *Set counterpart is
// true, mirroring the historic getopt_long precedence rule where only
// flags actually passed on the command line override the file.
type Overrides struct {
	Verbosity    logging.Level
	VerbositySet bool

	Daemonise    bool
	DaemoniseSet bool

	UDPxy    bool
	UDPxySet bool

	MaxClients    int
	MaxClientsSet bool

	Binds []string // raw "-l [host:]port" values, parsed by splitBindArg

	MetricsListen string
}

// Apply merges o into cfg, overriding only the fields the caller marked
// as set, and appending any "-l" bind addresses given on the command
// line to whatever the config file declared.
func Apply(cfg Config, o Overrides) (Config, []error) {
	var errs []error

	if o.VerbositySet {
		cfg.Verbosity = o.Verbosity
	}
	if o.DaemoniseSet {
		cfg.Daemonise = o.Daemonise
	}
	if o.UDPxySet {
		cfg.UDPxy = o.UDPxy
	}
	if o.MaxClientsSet {
		cfg.MaxClients = o.MaxClients
	}
	if o.MetricsListen != "" {
		cfg.MetricsListen = o.MetricsListen
	}

	for _, raw := range o.Binds {
		host, port, ok := splitBindArg(raw)
		if !ok {
			errs = append(errs, &invalidBindErr{raw})
			continue
		}
		cfg.Binds = append(cfg.Binds, BindEndpoint{Host: host, Port: port})
	}

	return cfg, errs
}

type invalidBindErr struct{ raw string }

func (e *invalidBindErr) Error() string { return "invalid -l bind address: " + e.raw }

// splitBindArg parses a "-l" command-line bind address in the
// "[host:]port" form: "host:port", "[ipv6]:port", or a bare port meaning
// any address. "*" and a bracketed IPv6 host without a port both mean
// the default port 8080.
func splitBindArg(s string) (host, port string, ok bool) {
	if s == "*" {
		return "", "8080", true
	}
	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return "", "", false
		}
		host = s[1:end]
		rest := s[end+1:]
		if rest == "" {
			return host, "8080", true
		}
		if !strings.HasPrefix(rest, ":") {
			return "", "", false
		}
		return host, rest[1:], true
	}
	if idx := strings.LastIndexByte(s, ':'); idx >= 0 && !strings.Contains(s[idx+1:], ":") {
		return s[:idx], s[idx+1:], true
	}
	return "", s, true
}
