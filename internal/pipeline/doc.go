// Package pipeline implements the scheduled units of work: fetching and
// storing index prices, checking component health and deleting old
// observations.
//
// Each Run returns a JSON-serializable summary instead of an error. Failures
// are classified into the summary's status so a scheduler never sees a
// pipeline crash.
package pipeline
