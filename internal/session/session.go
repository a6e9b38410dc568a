// Package session runs one client's lifetime: parse its request,
// resolve the service, admit or refuse it, then relay until the stream
// ends (§4.E).
package session

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/oskar456/rtp2httpd/internal/gwerr"
	"github.com/oskar456/rtp2httpd/internal/httpproto"
	"github.com/oskar456/rtp2httpd/internal/logging"
	"github.com/oskar456/rtp2httpd/internal/metrics"
	"github.com/oskar456/rtp2httpd/internal/recovery"
	"github.com/oskar456/rtp2httpd/internal/registry"
	"github.com/oskar456/rtp2httpd/internal/relay"
	"github.com/oskar456/rtp2httpd/internal/resolver"
)

// ExitStatus mirrors the historic per-worker exit codes (§4.E), used
// purely for logging/metrics — Go's error returns already carry the
// detail, but keeping a small numeric code matches what the dispatcher
// is asked to log "with the worker's exit code" in §4.F.
type ExitStatus int

const (
	Clean ExitStatus = iota
	WriteFailed
	ReadFailed
	UnknownMethod
	BadRequest
	RTPFailed
	SockReadFailed
	InternalError
)

func (s ExitStatus) String() string {
	switch s {
	case Clean:
		return "CLEAN"
	case WriteFailed:
		return "WRITE_FAILED"
	case ReadFailed:
		return "READ_FAILED"
	case UnknownMethod:
		return "UNKNOWN_METHOD"
	case BadRequest:
		return "BAD_REQUEST"
	case RTPFailed:
		return "RTP_FAILED"
	case SockReadFailed:
		return "SOCK_READ_FAILED"
	default:
		return "INTERNAL_ERROR"
	}
}

// Worker serves one accepted connection end to end.
type Worker struct {
	Resolver    *resolver.Resolver
	Logger      *logging.Logger
	Metrics     *metrics.Metrics
	ServerIdent string // e.g. "rtp2httpd/2.0", used in the Server: header and error bodies

	// Admit reports whether a new client should be admitted, matching
	// the strict count > max admission-gate semantics of §4.G. It is
	// supplied by the dispatcher, which owns the shared counter.
	Admit func() (admitted bool, release func())
}

// Serve owns conn for its entire lifetime, always closing it on return.
// A panic inside is recovered and logged as InternalError (§4.E) so one
// client cannot bring down the dispatcher.
func (w *Worker) Serve(conn net.Conn) (status ExitStatus) {
	accepted := time.Now()
	peer := conn.RemoteAddr().String()
	log := w.Logger.With("peer", peer)
	defer conn.Close()

	defer func() {
		var panicErr error
		recovery.AsError(&panicErr)
		if panicErr != nil {
			log.Log(logging.Error, "session: %v", panicErr)
			status = InternalError
		}
	}()

	admitted, release := w.Admit()
	if !admitted {
		w.Metrics.RecordClientRefused()
		httpproto.WriteStatus(conn, httpproto.Status503, true, w.ServerIdent)
		log.Log(logging.Info, "session: refused, concurrency limit reached")
		return Clean
	}
	defer release()

	req, err := httpproto.ReadRequest(bufio.NewReader(conn))
	if err != nil && req.Method == "" {
		// The request line didn't even tokenize into method+URL; there's
		// nothing to check priority against, so it's unconditionally BAD_REQUEST.
		w.Metrics.RecordRequestError("400")
		httpproto.WriteStatus(conn, httpproto.Status400, req.HasVersion, w.ServerIdent)
		log.Log(logging.Info, "session: malformed request: %v", err)
		return BadRequest
	}

	// Method is checked ahead of URL shape, matching the original's
	// priority (httpclients.c:391-405): an unsupported method on a
	// malformed URL is still UNKNOWN_METHOD, not BAD_REQUEST.
	if req.Method != "GET" {
		w.Metrics.RecordRequestError("501")
		httpproto.WriteStatus(conn, httpproto.Status501, req.HasVersion, w.ServerIdent)
		log.Log(logging.Info, "session: unsupported method %q", req.Method)
		return UnknownMethod
	}

	if err != nil {
		w.Metrics.RecordRequestError("400")
		httpproto.WriteStatus(conn, httpproto.Status400, req.HasVersion, w.ServerIdent)
		log.Log(logging.Info, "session: malformed request: %v", err)
		return BadRequest
	}

	desc, ok := w.Resolver.Resolve(req.URL)
	if !ok {
		w.Metrics.RecordRequestError("404")
		httpproto.WriteStatus(conn, httpproto.Status404, req.HasVersion, w.ServerIdent)
		log.Log(logging.Info, "session: no service for path %q", req.URL)
		return Clean
	}

	if err := httpproto.WriteStatus(conn, httpproto.Status200, req.HasVersion, w.ServerIdent); err != nil {
		log.Log(logging.Info, "session: failed writing response headers: %v", err)
		return WriteFailed
	}

	start := time.Now()
	w.Metrics.RecordStreamOpen(start.Sub(accepted).Seconds())
	relayErr := relay.Run(conn, desc, req.URL, log, w.Metrics)
	w.Metrics.RecordStreamClose(exitReason(relayErr))

	if relayErr == nil {
		log.Log(logging.Info, "session: stream for %q ended after %s (client disconnected)", req.URL, time.Since(start))
		return Clean
	}
	return mapRelayError(relayErr, log, req.URL)
}

func exitReason(err error) string {
	if err == nil {
		return "client disconnected"
	}
	var ge *gwerr.Error
	if errors.As(err, &ge) {
		return ge.Kind.String()
	}
	return "error"
}

func mapRelayError(err error, log *logging.Logger, path string) ExitStatus {
	var ge *gwerr.Error
	if errors.As(err, &ge) {
		switch ge.Kind {
		case gwerr.ClientWriteFailure:
			log.Log(logging.Info, "session: client write failed for %q: %v", path, err)
			return WriteFailed
		case gwerr.UpstreamJoinFailure:
			log.Log(logging.Error, "session: upstream join failed for %q: %v", path, err)
			return RTPFailed
		case gwerr.UpstreamStalled, gwerr.UpstreamReadFailure:
			log.Log(logging.Info, "session: upstream stalled for %q: %v", path, err)
			return SockReadFailed
		}
	}
	log.Log(logging.Error, "session: %v", fmt.Errorf("unclassified relay error for %q: %w", path, err))
	return InternalError
}
