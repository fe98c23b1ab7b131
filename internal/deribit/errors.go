package deribit

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrInvalidArgument is returned before any I/O for a symbol outside the
	// allow-list.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRateLimited matches an *APIError for HTTP 429 via errors.Is.
	ErrRateLimited = errors.New("rate limited")

	// ErrSessionClosed is returned by calls on a closed session.
	ErrSessionClosed = errors.New("session closed")
)

// APIError is a rejection by the exchange: either a non-200 HTTP status or
// an error envelope in a 200 response.
type APIError struct {
	Code       int    // upstream error code, or the HTTP status
	Message    string
	HTTPStatus int
	Body       []byte

	retryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("deribit api error %d: %s", e.Code, e.Message)
}

// Is reports whether the error matches ErrRateLimited.
func (e *APIError) Is(target error) bool {
	return target == ErrRateLimited && e.Code == http.StatusTooManyRequests
}

// envelope reports whether the error came from the response body rather
// than the HTTP status.
func (e *APIError) envelope() bool {
	return e.HTTPStatus == http.StatusOK
}

// ConnectionError is returned when transport failures outlast the retry
// budget or the caller's context ends.
type ConnectionError struct {
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("deribit connection failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
