package supervisor

import (
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyStarted is returned by Start when the supervisor already owns a
// process.
var ErrAlreadyStarted = errors.New("llama-server already started")

// ConfigError reports an invalid or incomplete configuration. It is always
// detected before any process is spawned.
type ConfigError struct{ Reason string }

func (e ConfigError) Error() string { return "supervisor config: " + e.Reason }

// IsConfigError reports whether err is a configuration failure.
func IsConfigError(err error) bool {
	var ce ConfigError
	return errors.As(err, &ce)
}

// ProcessExitedError reports that the supervised process exited while it
// was still expected to be running.
type ProcessExitedError struct {
	// ExitCode of the process; -1 when it cannot be determined.
	ExitCode int
	// Stderr tail captured from the process, when available.
	Stderr string
}

func (e ProcessExitedError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("llama-server exited with code %d; stderr tail: %s", e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("llama-server exited with code %d", e.ExitCode)
}

// IsProcessExited reports whether err means the child died on its own.
func IsProcessExited(err error) bool {
	var pe ProcessExitedError
	return errors.As(err, &pe)
}

// ReadyTimeoutError reports that the readiness budget ran out before the
// server answered 200.
type ReadyTimeoutError struct {
	Timeout time.Duration
	URL     string
}

func (e ReadyTimeoutError) Error() string {
	return fmt.Sprintf("llama-server not ready within %s: %s", e.Timeout, e.URL)
}

// IsReadyTimeout reports whether err is a readiness timeout.
func IsReadyTimeout(err error) bool {
	var te ReadyTimeoutError
	return errors.As(err, &te)
}

// StartupError wraps whatever kept Start from reaching readiness. By the
// time it is returned the process has already been torn down and the
// supervisor is idle again, so Start may be retried.
type StartupError struct{ Err error }

func (e StartupError) Error() string { return "startup failed: " + e.Err.Error() }

func (e StartupError) Unwrap() error { return e.Err }

// IsStartupError reports whether err came out of a failed Start.
func IsStartupError(err error) bool {
	var se StartupError
	return errors.As(err, &se)
}
