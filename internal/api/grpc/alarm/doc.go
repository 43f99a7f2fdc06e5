// Package alarm implements the gRPC transport for the presence engine.
//
// The service carries the same JSON documents as the HTTP API inside
// google.protobuf.Struct messages, so every transport shares one wire protocol.
// The service descriptor is declared by hand; no generated code is involved.
package alarm
