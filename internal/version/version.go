// Package version reports the gateway's build version, used in the
// HTTP Server: header and the "version" CLI subcommand (§6).
package version

import (
	"runtime/debug"
	"sync"
	"time"
)

// Version is the gateway version, set at build time via ldflags.
// Example: go build -ldflags="-X github.com/oskar456/rtp2httpd/internal/version.Version=1.0.0"
var Version = "dev"

var (
	startTime     time.Time
	startTimeOnce sync.Once
)

func init() {
	startTimeOnce.Do(func() {
		startTime = time.Now()
	})

	if Version == "dev" {
		Version = enhanceDevVersion()
	}
}

// enhanceDevVersion adds git commit info to a "dev" version using Go's
// build info. Produces "dev-a1b2c3d", "dev-a1b2c3d-dirty", or a
// timestamp fallback when no VCS info is embedded.
func enhanceDevVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev-" + startTime.UTC().Format("20060102-150405")
	}

	var revision string
	var dirty bool

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}

	if revision == "" {
		return "dev-" + startTime.UTC().Format("20060102-150405")
	}

	if len(revision) > 7 {
		revision = revision[:7]
	}

	if dirty {
		return "dev-" + revision + "-dirty"
	}
	return "dev-" + revision
}

// StartTime returns when the gateway process started.
func StartTime() time.Time {
	return startTime
}

// Uptime returns how long the gateway process has been running.
func Uptime() time.Duration {
	return time.Since(startTime)
}

// ServerIdent builds the identity string used in the HTTP Server:
// header and the version subcommand's banner, e.g. "rtp2httpd/1.0.0".
func ServerIdent() string {
	return "rtp2httpd/" + Version
}
