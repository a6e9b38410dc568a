// Package wizard provides an interactive terminal setup flow that
// builds a gateway config file without hand-editing the INI grammar,
// adapted from the teacher's huh-based setup (the original prompt
// helper package it layered on huh/lipgloss was not part of the
// retrieved pack, so this talks to huh directly; see DESIGN.md).
package wizard

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/oskar456/rtp2httpd/internal/config"
	"github.com/oskar456/rtp2httpd/internal/registry"
)

var bannerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("212")).
	Padding(0, 1)

// Result is the config the wizard produced, plus the path it should be
// written to.
type Result struct {
	Config     config.Config
	ConfigPath string
}

// Run walks the operator through the three config sections and returns
// the assembled configuration. It never touches the filesystem itself;
// callers decide whether/how to persist Result.Config.
func Run() (*Result, error) {
	fmt.Println(bannerStyle.Render("rtp2httpd setup wizard"))
	fmt.Println("Configure listen addresses, services and gateway options.")
	fmt.Println()

	cfg := config.Defaults()
	var configPath string

	if err := askConfigPath(&configPath); err != nil {
		return nil, err
	}

	if err := askBinds(&cfg); err != nil {
		return nil, err
	}

	if err := askServices(&cfg); err != nil {
		return nil, err
	}

	if err := askGlobals(&cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, ConfigPath: configPath}, nil
}

func askConfigPath(configPath *string) error {
	*configPath = "/etc/rtp2httpd.conf"
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Config file path").
				Value(configPath).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("path is required")
					}
					return nil
				}),
		),
	).Run()
}

func askBinds(cfg *config.Config) error {
	var host, port string
	host = "*"
	port = "8080"

	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Bind host (* for any address)").Value(&host),
			huh.NewInput().Title("Bind port").Value(&port).Validate(validatePort),
		),
	).Run(); err != nil {
		return err
	}

	bindHost := host
	if bindHost == "*" {
		bindHost = ""
	}
	cfg.Binds = append(cfg.Binds, config.BindEndpoint{Host: bindHost, Port: port})

	var more bool
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().Title("Add another bind address?").Value(&more),
		),
	).Run(); err != nil {
		return err
	}
	if more {
		return askBinds(cfg)
	}
	return nil
}

func askServices(cfg *config.Config) error {
	var name, framing, addr, port string
	framing = "MRTP"

	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Service name (URL path segment)").Value(&name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("service name is required")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Framing").
				Options(
					huh.NewOption("RTP (RFC 3550)", "MRTP"),
					huh.NewOption("Raw UDP payloads", "MUDP"),
				).
				Value(&framing),
			huh.NewInput().Title("Multicast group address (optionally source@group)").Value(&addr),
			huh.NewInput().Title("Multicast group port").Value(&port).Validate(validatePort),
		),
	).Run(); err != nil {
		return err
	}

	tuple := registry.Tuple{URLPath: name, Framing: framing, GroupPort: port}
	groupHost, sourceHost, sourcePort, hasSource := splitSSM(addr)
	tuple.GroupHost = groupHost
	if hasSource {
		tuple.SourceHost = sourceHost
		tuple.SourcePort = sourcePort
	}
	cfg.Services = append(cfg.Services, tuple)

	var more bool
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().Title("Add another service?").Value(&more),
		),
	).Run(); err != nil {
		return err
	}
	if more {
		return askServices(cfg)
	}
	return nil
}

func askGlobals(cfg *config.Config) error {
	maxClients := strconv.Itoa(cfg.MaxClients)
	udpxy := cfg.UDPxy
	daemonise := cfg.Daemonise

	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Max simultaneous clients").Value(&maxClients).Validate(validatePositiveInt),
			huh.NewConfirm().Title("Enable dynamic UDPxy-style URL resolution?").Value(&udpxy),
			huh.NewConfirm().Title("Set the daemonise option? (the gateway does not detach)").Value(&daemonise),
		),
	).Run(); err != nil {
		return err
	}

	n, _ := strconv.Atoi(maxClients)
	cfg.MaxClients = n
	cfg.UDPxy = udpxy
	cfg.Daemonise = daemonise
	return nil
}

// Render writes cfg back out in the INI grammar Parse understands, so
// the wizard's output can be round-tripped through config.Parse.
func Render(cfg config.Config) string {
	var b strings.Builder

	b.WriteString("[bind]\n")
	for _, bind := range cfg.Binds {
		host := bind.Host
		if host == "" {
			host = "*"
		}
		fmt.Fprintf(&b, "%s %s\n", host, bind.Port)
	}

	b.WriteString("\n[services]\n")
	for _, svc := range cfg.Services {
		addr := svc.GroupHost
		if svc.SourceHost != "" {
			source := svc.SourceHost
			if svc.SourcePort != "" {
				source = source + ":" + svc.SourcePort
			}
			addr = source + "@" + svc.GroupHost
		}
		fmt.Fprintf(&b, "%s %s %s %s\n", svc.URLPath, svc.Framing, addr, svc.GroupPort)
	}

	b.WriteString("\n[global]\n")
	fmt.Fprintf(&b, "verbosity = %d\n", int(cfg.Verbosity))
	fmt.Fprintf(&b, "daemonise = %s\n", boolToken(cfg.Daemonise))
	fmt.Fprintf(&b, "maxclients = %d\n", cfg.MaxClients)
	fmt.Fprintf(&b, "udpxy = %s\n", boolToken(cfg.UDPxy))
	if cfg.Hostname != "" {
		fmt.Fprintf(&b, "hostname = %s\n", cfg.Hostname)
	}
	if cfg.MetricsListen != "" {
		fmt.Fprintf(&b, "metrics = %s\n", cfg.MetricsListen)
	}

	return b.String()
}

// WriteFile renders cfg and writes it to path with owner-only permissions.
func WriteFile(path string, cfg config.Config) error {
	return os.WriteFile(path, []byte(Render(cfg)), 0o600)
}

func boolToken(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func validatePort(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

// splitSSM parses the "source[:sport]@group" address form shared with
// config.parseServiceLine.
func splitSSM(addr string) (group, source, sourcePort string, hasSource bool) {
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return addr, "", "", false
	}
	source = addr[:at]
	group = addr[at+1:]
	if colon := strings.LastIndex(source, ":"); colon >= 0 {
		sourcePort = source[colon+1:]
		source = source[:colon]
	}
	return group, source, sourcePort, true
}
