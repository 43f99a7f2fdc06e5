// Package common holds helpers shared by the device-side commands.
//
// It provides the Transport abstraction with gRPC and HTTP implementations,
// both with per-call timeouts, and utilities to generate a device identifier
// and detect the metadata a device registers with.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
