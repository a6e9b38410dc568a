package config

import (
	"strings"
	"testing"

	"github.com/oskar456/rtp2httpd/internal/logging"
)

func TestParse_BindSection(t *testing.T) {
	src := `
[bind]
* 8080
192.168.1.1 5555
`
	cfg, errs := Parse(strings.NewReader(src), Defaults())
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(cfg.Binds) != 2 {
		t.Fatalf("got %d binds, want 2", len(cfg.Binds))
	}
	if cfg.Binds[0].Host != "" || cfg.Binds[0].Port != "8080" {
		t.Fatalf("wildcard bind not parsed correctly: %+v", cfg.Binds[0])
	}
	if cfg.Binds[1].Host != "192.168.1.1" || cfg.Binds[1].Port != "5555" {
		t.Fatalf("host bind not parsed correctly: %+v", cfg.Binds[1])
	}
}

func TestParse_ServicesSection(t *testing.T) {
	src := `
[services]
news MRTP 239.1.1.1 5000
sport MUDP 10.0.0.5:6000@239.2.2.2 5001
`
	cfg, errs := Parse(strings.NewReader(src), Defaults())
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(cfg.Services) != 2 {
		t.Fatalf("got %d services, want 2", len(cfg.Services))
	}

	plain := cfg.Services[0]
	if plain.URLPath != "news" || plain.Framing != "MRTP" || plain.GroupHost != "239.1.1.1" || plain.GroupPort != "5000" {
		t.Fatalf("plain service parsed wrong: %+v", plain)
	}

	ssm := cfg.Services[1]
	if ssm.GroupHost != "239.2.2.2" || ssm.SourceHost != "10.0.0.5" || ssm.SourcePort != "6000" || ssm.GroupPort != "5001" {
		t.Fatalf("SSM service parsed wrong: %+v", ssm)
	}
}

func TestParse_GlobalSection(t *testing.T) {
	src := `
[global]
verbosity = 3
daemonise = on
maxclients = 20
udpxy = off
hostname = gw.example.net
`
	cfg, errs := Parse(strings.NewReader(src), Defaults())
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if cfg.Verbosity != logging.Level(3) {
		t.Fatalf("verbosity = %v, want 3", cfg.Verbosity)
	}
	if !cfg.Daemonise {
		t.Fatal("daemonise should be true")
	}
	if cfg.MaxClients != 20 {
		t.Fatalf("maxclients = %d, want 20", cfg.MaxClients)
	}
	if cfg.UDPxy {
		t.Fatal("udpxy should be false")
	}
	if cfg.Hostname != "gw.example.net" {
		t.Fatalf("hostname = %q", cfg.Hostname)
	}
}

func TestParse_CommentsAndBlankLinesIgnored(t *testing.T) {
	src := `
# this is a comment
; so is this
[global]
# comment inside section
maxclients = 7
`
	cfg, errs := Parse(strings.NewReader(src), Defaults())
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if cfg.MaxClients != 7 {
		t.Fatalf("maxclients = %d, want 7", cfg.MaxClients)
	}
}

func TestParse_UnknownSectionReported(t *testing.T) {
	_, errs := Parse(strings.NewReader("[bogus]\nfoo bar\n"), Defaults())
	if len(errs) == 0 {
		t.Fatal("expected an error for an unknown section")
	}
}

func TestParse_LineOutsideSectionReported(t *testing.T) {
	_, errs := Parse(strings.NewReader("foo bar baz\n"), Defaults())
	if len(errs) == 0 {
		t.Fatal("expected an error for a line outside any section")
	}
}

func TestValidate_DefaultsToWildcardBind(t *testing.T) {
	cfg := Defaults()
	if err := Validate(&cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Binds) != 1 || cfg.Binds[0].Port != "8080" {
		t.Fatalf("expected default wildcard bind on 8080, got %+v", cfg.Binds)
	}
}

func TestValidate_RejectsBadMaxClients(t *testing.T) {
	cfg := Defaults()
	cfg.MaxClients = 0
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected an error for maxclients=0")
	}
}

func TestApply_OverridesOnlySetFields(t *testing.T) {
	cfg := Defaults()
	cfg.MaxClients = 5

	merged, errs := Apply(cfg, Overrides{MaxClients: 99, MaxClientsSet: true})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if merged.MaxClients != 99 {
		t.Fatalf("maxclients = %d, want 99", merged.MaxClients)
	}
	if merged.UDPxy != cfg.UDPxy {
		t.Fatal("UDPxy should be untouched when not set in overrides")
	}
}

func TestApply_BindFlagAppendsEndpoint(t *testing.T) {
	merged, errs := Apply(Defaults(), Overrides{Binds: []string{"[::1]:9000", "*"}})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(merged.Binds) != 2 {
		t.Fatalf("got %d binds, want 2", len(merged.Binds))
	}
	if merged.Binds[0].Host != "::1" || merged.Binds[0].Port != "9000" {
		t.Fatalf("bad ipv6 bind: %+v", merged.Binds[0])
	}
	if merged.Binds[1].Host != "" || merged.Binds[1].Port != "8080" {
		t.Fatalf("bad wildcard bind: %+v", merged.Binds[1])
	}
}
