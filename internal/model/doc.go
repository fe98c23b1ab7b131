// Package model defines the price observation types shared by the store,
// the pipelines and the HTTP API.
//
// Conventions:
//   - Tickers: lowercase, matching ^(btc|eth)[-_][a-z0-9]{2,15}$
//   - Prices: decimal.Decimal, stored as NUMERIC(20,8)
//   - Timestamp: int64 milliseconds since Unix epoch (the poll's logical time)
//   - SourceTimestamp: int64 microseconds since Unix epoch, optional
package model
