package client

import "errors"

// StreamError marks a stream that broke after it started: the HTTP exchange
// succeeded but the body ended abnormally. Tokens already delivered stand.
type StreamError struct{ Cause error }

func (e StreamError) Error() string { return "token stream interrupted: " + e.Cause.Error() }

func (e StreamError) Unwrap() error { return e.Cause }

// IsStreamError reports whether err is a mid-stream interruption.
func IsStreamError(err error) bool {
	var se StreamError
	return errors.As(err, &se)
}
