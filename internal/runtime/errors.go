package runtime

import (
	"errors"
	"fmt"
	"net/http"
)

// TooBusyError means the concurrent-stream limit was hit; the request was
// rejected before touching the upstream.
type TooBusyError struct{ Limit int }

func (e TooBusyError) Error() string {
	return fmt.Sprintf("too many concurrent chat requests (limit %d)", e.Limit)
}

// IsTooBusy reports whether err is an admission rejection.
func IsTooBusy(err error) bool {
	var be TooBusyError
	return errors.As(err, &be)
}

// UpstreamNotReadyError means no running llama-server exists to serve the
// request.
type UpstreamNotReadyError struct{ State string }

func (e UpstreamNotReadyError) Error() string {
	return fmt.Sprintf("llama-server is not running (state %s)", e.State)
}

// IsUpstreamNotReady reports whether err means the process is absent.
func IsUpstreamNotReady(err error) bool {
	var ne UpstreamNotReadyError
	return errors.As(err, &ne)
}

// UpstreamError wraps a failure talking to a server that should have been
// there: the process runs but the exchange failed before any output.
type UpstreamError struct{ Cause error }

func (e UpstreamError) Error() string { return "upstream: " + e.Cause.Error() }

func (e UpstreamError) Unwrap() error { return e.Cause }

// StatusCode makes the error speak HTTP: a broken upstream is a bad
// gateway.
func (e UpstreamError) StatusCode() int { return http.StatusBadGateway }
