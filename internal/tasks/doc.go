// Package tasks binds the pipelines to the Redis-backed task queue.
//
// Task types are declared once in Definitions. The worker builds a ServeMux
// from that table at startup and fails fast if a type has no handler. The
// scheduler enqueues the periodic triggers; the API side uses Dispatcher to
// trigger runs on demand and to report task status.
//
// Delivery is at-least-once. A redelivered fetch may store the same
// observation twice, which the prices table tolerates.
package tasks
