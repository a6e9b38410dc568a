// Package recovery guards the gateway's many per-connection goroutines
// (accept loop, relay read loop, client-close watcher) against a single
// panic taking down the whole process.
package recovery

import (
	"fmt"
	"runtime/debug"

	"github.com/oskar456/rtp2httpd/internal/logging"
)

// RecoverWithLog recovers from a panic and logs it with name identifying
// which goroutine crashed. Deferred at the top of a goroutine, it turns
// a panic into a logged error instead of a process crash.
func RecoverWithLog(log *logging.Logger, name string) {
	if r := recover(); r != nil {
		log.Log(logging.Error, "panic recovered in %s: %v\n%s", name, r, debug.Stack())
	}
}

// RecoverWithCallback behaves like RecoverWithLog but additionally
// invokes callback with the recovered value, e.g. so a goroutine can
// record a metric or close a resource before returning.
func RecoverWithCallback(log *logging.Logger, name string, callback func(recovered any)) {
	if r := recover(); r != nil {
		log.Log(logging.Error, "panic recovered in %s: %v\n%s", name, r, debug.Stack())
		if callback != nil {
			callback(r)
		}
	}
}

// AsError recovers a panic and, if one occurred, reports it through err.
// Intended for defer in a function that already returns an error, e.g.
// session.Worker.Serve.
func AsError(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
	}
}
