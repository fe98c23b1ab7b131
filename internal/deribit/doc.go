// Package deribit provides a JSON-RPC client for the Deribit public API.
//
// Every call is POSTed to a single endpoint inside a request envelope:
//
//	{"jsonrpc": "2.0", "id": 42, "method": "public/get_index_price", "params": {...}}
//
// Calls are made through a Session obtained from Client.Open. The session
// owns its connections and must be closed by the caller. Transient failures
// are retried inside the session:
//
//   - HTTP 429 waits for Retry-After (default 1s)
//   - other non-200 statuses and transport failures back off exponentially
//   - an error envelope in a 200 response is final
package deribit
