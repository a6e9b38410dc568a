// Package config parses the gateway's INI-shaped configuration file and
// merges it with command-line overrides (§6). The grammar mirrors the
// original implementation closely: three sections ([bind], [services],
// [global]), line comments starting with '#' or ';', and the SSM address
// form "source[:sport]@group" in [services] ADDR fields (carried forward
// from the original parser per SPEC_FULL §9).
package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/oskar456/rtp2httpd/internal/logging"
	"github.com/oskar456/rtp2httpd/internal/registry"
)

// BindEndpoint is one declared (host, port) pair to listen on. Host is
// empty when the config used "*" (any address).
type BindEndpoint struct {
	Host string
	Port string
}

// Config is the fully merged configuration the gateway runs with.
type Config struct {
	Binds         []BindEndpoint
	Services      []registry.Tuple
	Verbosity     logging.Level
	Daemonise     bool
	MaxClients    int
	UDPxy         bool
	Hostname      string
	MaxListeners  int    // default 16, see SPEC_FULL §4.F
	MetricsListen string // empty disables the management listener
}

// Defaults returns the historic default configuration: ERROR verbosity,
// foreground, maxclients=5, udpxy enabled.
func Defaults() Config {
	return Config{
		Verbosity:    logging.Error,
		Daemonise:    false,
		MaxClients:   5,
		UDPxy:        true,
		MaxListeners: 16,
	}
}

// ParseError records a single rejected or unrecognised config line; the
// parser collects these and keeps going rather than aborting on the
// first bad line, matching the original "log and skip" behavior.
type ParseError struct {
	Line int
	Msg  string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("config: line %d: %s", e.Line, e.Msg)
}

type section int

const (
	sectionNone section = iota
	sectionBind
	sectionServices
	sectionGlobal
)

// Parse reads an INI-shaped config file starting from cfg (normally
// Defaults()) and returns the merged result plus any non-fatal parse
// errors encountered along the way.
func Parse(r io.Reader, cfg Config) (Config, []error) {
	var errs []error
	sec := sectionNone

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") {
			end := strings.IndexByte(line, ']')
			if end < 0 {
				errs = append(errs, ParseError{lineNo, "unterminated section: " + line})
				continue
			}
			name := strings.ToLower(line[1:end])
			switch name {
			case "bind":
				sec = sectionBind
			case "services":
				sec = sectionServices
			case "global":
				sec = sectionGlobal
			default:
				errs = append(errs, ParseError{lineNo, "invalid section name: " + name})
			}
			continue
		}

		var err error
		switch sec {
		case sectionBind:
			err = parseBindLine(&cfg, line)
		case sectionServices:
			err = parseServiceLine(&cfg, line)
		case sectionGlobal:
			err = parseGlobalLine(&cfg, line)
		default:
			err = fmt.Errorf("config line outside any section: %s", line)
		}
		if err != nil {
			errs = append(errs, ParseError{lineNo, err.Error()})
		}
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, err)
	}

	return cfg, errs
}

func parseBindLine(cfg *Config, line string) error {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return fmt.Errorf("malformed [bind] line: %q", line)
	}
	host := fields[0]
	if host == "*" {
		host = ""
	}
	cfg.Binds = append(cfg.Binds, BindEndpoint{Host: host, Port: fields[1]})
	return nil
}

// parseServiceLine parses "NAME TYPE ADDR PORT", where ADDR may be a
// plain group address or the SSM form "source[:sport]@group".
func parseServiceLine(cfg *Config, line string) error {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return fmt.Errorf("malformed [services] line: %q", line)
	}
	name, typ, addr, port := fields[0], fields[1], fields[2], fields[3]

	t := registry.Tuple{URLPath: name, Framing: typ, GroupPort: port}

	if at := strings.IndexByte(addr, '@'); at >= 0 {
		sourcePart, group := addr[:at], addr[at+1:]
		t.GroupHost = group
		if colon := strings.LastIndexByte(sourcePart, ':'); colon >= 0 {
			t.SourceHost = sourcePart[:colon]
			t.SourcePort = sourcePart[colon+1:]
		} else {
			t.SourceHost = sourcePart
		}
	} else {
		t.GroupHost = addr
	}

	cfg.Services = append(cfg.Services, t)
	return nil
}

func parseGlobalLine(cfg *Config, line string) error {
	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		return fmt.Errorf("unrecognised config line: %q", line)
	}
	key := strings.ToLower(strings.TrimSpace(line[:eq]))
	value := strings.TrimSpace(line[eq+1:])

	switch key {
	case "verbosity":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid verbosity: %q", value)
		}
		cfg.Verbosity = logging.Level(n)
	case "daemonise", "daemonize":
		cfg.Daemonise = parseBool(value)
	case "maxclients":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid maxclients: %q", value)
		}
		cfg.MaxClients = n
	case "udpxy":
		cfg.UDPxy = parseBool(value)
	case "hostname":
		cfg.Hostname = value
	case "metrics":
		cfg.MetricsListen = value
	default:
		return fmt.Errorf("unknown config parameter: %q", key)
	}
	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "on", "true", "yes", "1":
		return true
	default:
		return false
	}
}

// Validate checks the merged configuration for the conditions that must
// abort startup, and fills in the historic "listen on *, port 8080"
// default when no [bind] lines were given.
func Validate(cfg *Config) error {
	if cfg.MaxClients < 1 {
		return fmt.Errorf("config: maxclients must be >= 1, got %d", cfg.MaxClients)
	}
	if cfg.MaxListeners < 1 {
		return fmt.Errorf("config: max listeners must be >= 1, got %d", cfg.MaxListeners)
	}
	if len(cfg.Binds) == 0 {
		cfg.Binds = append(cfg.Binds, BindEndpoint{Host: "", Port: "8080"})
	}
	return nil
}
