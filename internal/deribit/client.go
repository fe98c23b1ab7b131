package deribit

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"sync/atomic"
	"time"
)

// Client provides access to the Deribit public JSON-RPC API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries    int
	retryDelay    time.Duration
	backoffFactor float64

	requestID atomic.Int64
	sleep     func(ctx context.Context, d time.Duration) error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:        slog.Default(),
		maxRetries:    3,
		retryDelay:    time.Second,
		backoffFactor: 2,
		sleep:         SleepContext,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry bound and the base backoff delay.
func WithRetries(max int, delay time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryDelay = delay
	}
}

// WithBackoffFactor sets the multiplier applied to the delay per attempt.
func WithBackoffFactor(f float64) ClientOption {
	return func(c *Client) {
		c.backoffFactor = f
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client. Sessions clone its transport
// when it is an *http.Transport and share it otherwise.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func (c *Client) nextID() int64 {
	return c.requestID.Add(1)
}

// backoff returns baseDelay * factor^attempt.
func (c *Client) backoff(attempt int) time.Duration {
	return time.Duration(float64(c.retryDelay) * math.Pow(c.backoffFactor, float64(attempt)))
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
