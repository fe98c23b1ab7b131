package deribit

import (
	"net/http"
	"sync/atomic"
)

// Session is a scoped connection to the API. All retries of a call reuse it.
type Session struct {
	client *Client
	http   *http.Client
	closed atomic.Bool
}

// Open acquires a session. Callers must Close it.
func (c *Client) Open() *Session {
	hc := c.httpClient
	if t, ok := transportOf(hc); ok {
		hc = &http.Client{
			Transport:     t.Clone(),
			Timeout:       hc.Timeout,
			CheckRedirect: hc.CheckRedirect,
			Jar:           hc.Jar,
		}
	}
	return &Session{client: c, http: hc}
}

// Close releases the session's idle connections. It is safe to call more
// than once.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.http.CloseIdleConnections()
	return nil
}

// transportOf reports the *http.Transport a session may clone. Custom
// round trippers are shared as is.
func transportOf(hc *http.Client) (*http.Transport, bool) {
	switch t := hc.Transport.(type) {
	case nil:
		dt, ok := http.DefaultTransport.(*http.Transport)
		return dt, ok
	case *http.Transport:
		return t, true
	default:
		return nil, false
	}
}
