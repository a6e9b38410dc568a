// Package logging adapts a structured slog.Logger to the gateway's
// logger contract (§6): a Logger exposes Log(level, format, args...),
// where level is one of FATAL/ERROR/INFO/DEBUG and messages above the
// configured verbosity are dropped. Under the hood every call still goes
// through slog, so operators get structured fields (component, peer,
// exit code) alongside the printf-style message.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/time/rate"
)

// Level mirrors the historic enum loglevel: lower numbers are always
// shown, higher numbers require higher configured verbosity.
type Level int

const (
	Fatal Level = iota
	Error
	Info
	Debug
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case Fatal, Error:
		return slog.LevelError
	case Info:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

func (l Level) String() string {
	switch l {
	case Fatal:
		return "FATAL"
	case Error:
		return "ERROR"
	case Info:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// Logger is the gateway-wide logging handle. Verbosity is the highest
// Level that will be emitted, matching "messages at level <= current
// verbosity are emitted" from §6.
type Logger struct {
	base      *slog.Logger
	verbosity Level
	// debugLimiter throttles DEBUG-level output so a congested multicast
	// group logging a "malformed"/"duplicate" line per packet cannot
	// flood the diagnostic stream.
	debugLimiter *rate.Limiter
}

// New builds a Logger at the given verbosity, writing to w in the given
// format ("json" or "text").
func New(verbosity Level, format string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &Logger{
		base:         slog.New(handler),
		verbosity:    verbosity,
		debugLimiter: rate.NewLimiter(rate.Limit(20), 40),
	}
}

// NewDefault builds a text Logger at Info verbosity writing to stderr,
// the gateway's default diagnostic stream.
func NewDefault() *Logger {
	return New(Info, "text", os.Stderr)
}

// Nop discards all output; used in tests that don't care about logs.
func Nop() *Logger {
	l := New(Fatal-1, "text", io.Discard)
	return l
}

// Log emits a printf-style message at level if level <= the configured
// verbosity. DEBUG-level messages are additionally subject to the rate
// limiter.
func (l *Logger) Log(level Level, format string, args ...any) {
	if l == nil || level > l.verbosity {
		return
	}
	if level == Debug && l.debugLimiter != nil && !l.debugLimiter.Allow() {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	l.base.Log(context.Background(), level.slogLevel(), msg, slog.String("level", level.String()))
}

// With returns a Logger that attaches the given structured attributes
// (e.g. peer address, component name) to every subsequent call.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{base: l.base.With(args...), verbosity: l.verbosity, debugLimiter: l.debugLimiter}
}
