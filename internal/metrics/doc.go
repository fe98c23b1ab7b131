// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Exchange request outcomes and retry counts
//   - Fetch run outcomes, fetched and saved price counts
//   - Health check verdicts and per-component latency
//   - Retention cleanup deletions
//   - HTTP API request counts and latencies
package metrics
