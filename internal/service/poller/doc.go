// Package poller implements the Polling Client Adapter.
//
// A Poller registers a device, polls the server on a fixed interval and plays
// every alarm fired by another device exactly once. Exactly-once discovery
// relies on a watermark: the timestamp of the newest processed alarm, compared
// strictly against the server-assigned, strictly increasing alarm timestamps.
// Liveness pings run on their own interval; a failed ping triggers reconnects
// with exponential backoff.
package poller
