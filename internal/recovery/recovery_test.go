package recovery

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/oskar456/rtp2httpd/internal/logging"
)

func testLogger(buf *bytes.Buffer) *logging.Logger {
	return logging.New(logging.Debug, "text", buf)
}

func TestRecoverWithLog_RecoversPanic(t *testing.T) {
	var buf bytes.Buffer
	log := testLogger(&buf)

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		defer RecoverWithLog(log, "testGoroutine")
		panic("test panic")
	}()

	wg.Wait()

	output := buf.String()
	if !strings.Contains(output, "panic recovered") {
		t.Errorf("expected 'panic recovered' in output, got: %s", output)
	}
	if !strings.Contains(output, "testGoroutine") {
		t.Errorf("expected goroutine name in output, got: %s", output)
	}
	if !strings.Contains(output, "test panic") {
		t.Errorf("expected panic message in output, got: %s", output)
	}
}

func TestRecoverWithLog_NoopOnNoPanic(t *testing.T) {
	var buf bytes.Buffer
	log := testLogger(&buf)

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		defer RecoverWithLog(log, "normalGoroutine")
	}()

	wg.Wait()

	if buf.Len() > 0 {
		t.Errorf("expected no output when no panic, got: %s", buf.String())
	}
}

func TestRecoverWithCallback_CallsCallback(t *testing.T) {
	var buf bytes.Buffer
	log := testLogger(&buf)

	var wg sync.WaitGroup
	wg.Add(1)

	var callbackCalled bool
	var recoveredValue any

	go func() {
		defer wg.Done()
		defer RecoverWithCallback(log, "callbackGoroutine", func(r any) {
			callbackCalled = true
			recoveredValue = r
		})
		panic("callback test")
	}()

	wg.Wait()

	if !callbackCalled {
		t.Error("expected callback to be called")
	}
	if recoveredValue != "callback test" {
		t.Errorf("expected recovered value 'callback test', got: %v", recoveredValue)
	}
}

func TestRecoverWithCallback_NilCallback(t *testing.T) {
	var buf bytes.Buffer
	log := testLogger(&buf)

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		defer RecoverWithCallback(log, "nilCallbackGoroutine", nil)
		panic("nil callback test")
	}()

	wg.Wait()

	if !strings.Contains(buf.String(), "panic recovered") {
		t.Errorf("expected panic to be logged, got: %s", buf.String())
	}
}

func TestAsError_SetsErrorOnPanic(t *testing.T) {
	run := func() (err error) {
		defer AsError(&err)
		panic("boom")
	}

	err := run()
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("AsError did not capture panic, got: %v", err)
	}
}

func TestAsError_LeavesExistingErrorOnNoPanic(t *testing.T) {
	wantErr := errors.New("pre-existing")
	run := func() (err error) {
		defer AsError(&err)
		return wantErr
	}

	if got := run(); got != wantErr {
		t.Errorf("AsError changed a non-panic error: got %v, want %v", got, wantErr)
	}
}
