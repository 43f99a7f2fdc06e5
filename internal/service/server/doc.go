// Package server runs the alarm-server process: the presence engine behind
// the HTTP and gRPC transports, push fan-out, metrics and the stale-device
// sweeper, with graceful shutdown.
package server
