// Package httpapi serves the query API and the task-control surface.
//
// Routes:
//
//	GET  /                         service info
//	GET  /health                   liveness
//	GET  /metrics                  Prometheus metrics (path configurable)
//	GET  /v1/prices                page of observations for a ticker
//	POST /v1/prices                store one observation (testing and admin use)
//	GET  /v1/prices/latest         newest observation
//	GET  /v1/prices/filter         observations within [start, end]
//	GET  /v1/prices/stats          aggregate statistics
//	GET  /v1/prices/available-tickers
//	POST /v1/trigger-fetch-prices  enqueue a fetch run
//	POST /v1/trigger-cleanup       enqueue a retention cleanup
//	GET  /v1/tasks/{id}            task status
//	GET  /v1/health                run a health check and wait for it
//	GET  /v1/queues                queue and worker overview
//
// Errors are returned as {"detail": "..."}.
package httpapi
