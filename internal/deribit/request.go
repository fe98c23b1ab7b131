package deribit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rickgao/deribit-prices/internal/metrics"
)

const maxResponseBytes = 1 << 20

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	Testnet bool            `json:"testnet"`
	UsIn    int64           `json:"usIn"`
	UsOut   int64           `json:"usOut"`
	UsDiff  int64           `json:"usDiff"`
}

// doRequest performs a single JSON-RPC round trip.
func (s *Session) doRequest(ctx context.Context, method string, params any) (*rpcResponse, error) {
	c := s.client

	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &APIError{
			Code:       resp.StatusCode,
			Message:    "rate limit exceeded",
			HTTPStatus: resp.StatusCode,
			Body:       body,
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			Code:       resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			HTTPStatus: resp.StatusCode,
			Body:       body,
		}
	}

	var out rpcResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != nil {
		msg := out.Error.Message
		if msg == "" {
			msg = "unknown error"
		}
		return nil, &APIError{
			Code:       out.Error.Code,
			Message:    msg,
			HTTPStatus: resp.StatusCode,
			Body:       body,
		}
	}

	return &out, nil
}

// call runs the retry loop around doRequest.
func (s *Session) call(ctx context.Context, method string, params any) (*rpcResponse, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	c := s.client

	for attempt := 0; ; attempt++ {
		resp, err := s.doRequest(ctx, method, params)
		if err == nil {
			metrics.ExchangeRequests.WithLabelValues(method, "ok").Inc()
			return resp, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.ExchangeRequests.WithLabelValues(method, "canceled").Inc()
			return nil, &ConnectionError{Attempts: attempt + 1, Err: ctxErr}
		}

		var apiErr *APIError
		isAPI := errors.As(err, &apiErr)

		var delay time.Duration
		reason := "transport"
		switch {
		case isAPI && apiErr.envelope():
			metrics.ExchangeRequests.WithLabelValues(method, "rejected").Inc()
			return nil, apiErr
		case isAPI && apiErr.Code == http.StatusTooManyRequests:
			delay = apiErr.retryAfter
			reason = "rate_limited"
		case isAPI:
			delay = c.backoff(attempt)
			reason = "http_status"
		default:
			delay = c.backoff(attempt)
		}
		metrics.ExchangeRequests.WithLabelValues(method, reason).Inc()

		if attempt >= c.maxRetries {
			c.logger.Warn("deribit request failed, retries exhausted",
				"method", method,
				"attempts", attempt+1,
				"error", err,
			)
			if isAPI {
				return nil, apiErr
			}
			return nil, &ConnectionError{Attempts: attempt + 1, Err: err}
		}

		c.logger.Debug("retrying deribit request",
			"method", method,
			"attempt", attempt+1,
			"reason", reason,
			"delay", delay,
			"error", err,
		)
		metrics.ExchangeRetries.WithLabelValues(reason).Inc()

		if err := c.sleep(ctx, delay); err != nil {
			return nil, &ConnectionError{Attempts: attempt + 1, Err: err}
		}
	}
}

// parseRetryAfter reads either form of Retry-After: delay-seconds or an
// HTTP date. Missing or malformed values default to one second; a date in
// the past means no wait.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return time.Second
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return time.Second
		}
		return time.Duration(secs) * time.Second
	}
	at, err := http.ParseTime(v)
	if err != nil {
		return time.Second
	}
	return max(at.Sub(now), 0)
}
