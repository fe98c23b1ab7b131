package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of fractional digits kept for a price.
const PriceScale = 8

// MaxPriceDigits is the total precision of the price column.
const MaxPriceDigits = 20

var tickerPattern = regexp.MustCompile(`^(btc|eth)[-_][a-z0-9]{2,15}$`)

// maxPrice is the largest value NUMERIC(20,8) can hold.
var maxPrice = decimal.New(1, MaxPriceDigits-PriceScale)

// PriceObservation is one persisted index price.
type PriceObservation struct {
	ID              int64           `json:"id"`
	Ticker          string          `json:"ticker"`
	Price           decimal.Decimal `json:"price"`
	Timestamp       int64           `json:"timestamp"`        // ms since epoch
	SourceTimestamp *int64          `json:"source_timestamp"` // µs since epoch
	CreatedAt       time.Time       `json:"created_at"`
}

// NewObservation is an observation that has not been stored yet.
type NewObservation struct {
	Ticker          string          `json:"ticker"`
	Price           decimal.Decimal `json:"price"`
	Timestamp       int64           `json:"timestamp"`
	SourceTimestamp *int64          `json:"source_timestamp,omitempty"`
}

// ObservationInput is an observation as submitted by a client. Pointer
// fields distinguish a missing or null value from zero.
type ObservationInput struct {
	Ticker          string           `json:"ticker"`
	Price           *decimal.Decimal `json:"price"`
	Timestamp       *int64           `json:"timestamp"`
	SourceTimestamp *int64           `json:"source_timestamp"`
}

// Observation checks that every required field is present and returns
// the NewObservation, or a *ValidationError.
func (in ObservationInput) Observation() (NewObservation, error) {
	if in.Price == nil {
		return NewObservation{}, &ValidationError{Field: "price", Message: "is required"}
	}
	if in.Timestamp == nil {
		return NewObservation{}, &ValidationError{Field: "timestamp", Message: "is required"}
	}
	return NewObservation{
		Ticker:          in.Ticker,
		Price:           *in.Price,
		Timestamp:       *in.Timestamp,
		SourceTimestamp: in.SourceTimestamp,
	}, nil
}

// PriceStats aggregates all observations for one ticker. Every field except
// Count is nil when Count is zero.
type PriceStats struct {
	Ticker         string           `json:"ticker"`
	Count          int64            `json:"count"`
	MinPrice       *decimal.Decimal `json:"min_price"`
	MaxPrice       *decimal.Decimal `json:"max_price"`
	AvgPrice       *decimal.Decimal `json:"avg_price"`
	FirstTimestamp *int64           `json:"first_timestamp"`
	LastTimestamp  *int64           `json:"last_timestamp"`
}

// ValidationError reports a malformed observation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NormalizeTicker lowercases and trims a ticker.
func NormalizeTicker(ticker string) string {
	return strings.ToLower(strings.TrimSpace(ticker))
}

// ValidTicker reports whether ticker, after normalization, has the
// expected shape.
func ValidTicker(ticker string) bool {
	return tickerPattern.MatchString(NormalizeTicker(ticker))
}

// Normalize returns a copy with the ticker lowercased and the price rounded
// to PriceScale digits, or a *ValidationError.
func (o NewObservation) Normalize() (NewObservation, error) {
	o.Ticker = NormalizeTicker(o.Ticker)
	if o.Ticker == "" {
		return o, &ValidationError{Field: "ticker", Message: "is required"}
	}
	if !tickerPattern.MatchString(o.Ticker) {
		return o, &ValidationError{
			Field:   "ticker",
			Message: fmt.Sprintf("%q must start with btc or eth, like btc_usd or btc-perpetual", o.Ticker),
		}
	}
	if o.Price.IsNegative() {
		return o, &ValidationError{Field: "price", Message: "must be >= 0"}
	}
	o.Price = o.Price.Round(PriceScale)
	if o.Price.GreaterThanOrEqual(maxPrice) {
		return o, &ValidationError{Field: "price", Message: fmt.Sprintf("exceeds %d digits", MaxPriceDigits)}
	}
	if o.Timestamp < 0 {
		return o, &ValidationError{Field: "timestamp", Message: "must be >= 0"}
	}
	return o, nil
}

// Time returns the observation's logical time in UTC.
func (p PriceObservation) Time() time.Time {
	return time.UnixMilli(p.Timestamp).UTC()
}
