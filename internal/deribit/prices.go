package deribit

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	methodGetIndexPrice = "public/get_index_price"
	methodGetTime       = "public/get_time"
)

// Symbols accepted by FetchIndexPrice.
var Symbols = []string{"btc_usd", "eth_usd"}

// IndexPrice is the result of public/get_index_price.
type IndexPrice struct {
	IndexPrice             *float64 `json:"index_price"`
	EstimatedDeliveryPrice *float64 `json:"estimated_delivery_price"`

	// ServerTimeMicros is the response's usOut stamp, zero if absent.
	ServerTimeMicros int64 `json:"-"`
}

// Result holds one symbol's outcome from FetchMultiple. Exactly one of
// Price and Err is set.
type Result struct {
	Price *IndexPrice
	Err   error
}

// ValidSymbol reports whether symbol is in the allow-list.
func ValidSymbol(symbol string) bool {
	return slices.Contains(Symbols, symbol)
}

// FetchIndexPrice returns the current index price for symbol.
func (s *Session) FetchIndexPrice(ctx context.Context, symbol string) (*IndexPrice, error) {
	if !ValidSymbol(symbol) {
		return nil, fmt.Errorf("%w: index %q, allowed values %v", ErrInvalidArgument, symbol, Symbols)
	}

	resp, err := s.call(ctx, methodGetIndexPrice, map[string]string{"index_name": symbol})
	if err != nil {
		return nil, err
	}

	var price IndexPrice
	if len(resp.Result) > 0 && string(resp.Result) != "null" {
		if err := json.Unmarshal(resp.Result, &price); err != nil {
			return nil, fmt.Errorf("unmarshal index price: %w", err)
		}
	}
	price.ServerTimeMicros = resp.UsOut

	return &price, nil
}

// FetchMultiple fetches every symbol concurrently. A failure for one symbol
// never affects the others. The returned error is non-nil only when every
// symbol failed, and is the first failure in input order.
func (s *Session) FetchMultiple(ctx context.Context, symbols []string) (map[string]Result, error) {
	var unique []string
	for _, symbol := range symbols {
		if !slices.Contains(unique, symbol) {
			unique = append(unique, symbol)
		}
	}

	results := make(map[string]Result, len(unique))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, symbol := range unique {
		g.Go(func() error {
			price, err := s.FetchIndexPrice(gctx, symbol)
			if err != nil {
				s.client.logger.Error("failed to fetch index price",
					"symbol", symbol,
					"error", err,
				)
			}

			mu.Lock()
			results[symbol] = Result{Price: price, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(unique) == 0 {
		return results, nil
	}
	for _, symbol := range unique {
		if results[symbol].Err == nil {
			return results, nil
		}
	}
	return results, results[unique[0]].Err
}

// ServerTime returns the exchange clock.
func (s *Session) ServerTime(ctx context.Context) (time.Time, error) {
	resp, err := s.call(ctx, methodGetTime, struct{}{})
	if err != nil {
		return time.Time{}, err
	}

	var millis int64
	if err := json.Unmarshal(resp.Result, &millis); err != nil {
		return time.Time{}, fmt.Errorf("unmarshal server time: %w", err)
	}
	return time.UnixMilli(millis).UTC(), nil
}

// CheckReachable reports whether a server-time call succeeds.
func (s *Session) CheckReachable(ctx context.Context) bool {
	_, err := s.ServerTime(ctx)
	return err == nil
}
