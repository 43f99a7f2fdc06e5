// Package integration holds end-to-end tests that run the real server on
// loopback ports and drive it through the HTTP, gRPC and websocket clients.
package integration
