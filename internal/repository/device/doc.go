// Package device implements the in-memory presence registry.
//
// The Registry maps device identifiers to their last-seen time and metadata.
// Activity is a read-time classification; nothing expires on its own.
package device
