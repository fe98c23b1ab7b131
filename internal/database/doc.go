// Package database provides the PostgreSQL connection pool and schema
// bootstrap for the price store.
//
// Both binaries open one pool at startup. The worker runs EnsureSchema
// before registering tasks so the prices table exists on first run.
package database
