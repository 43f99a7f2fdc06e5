// Package history implements the bounded, in-memory alarm log.
//
// Events are kept in insertion order in a fixed-capacity ring; the oldest
// event is evicted when a new one does not fit.
package history
