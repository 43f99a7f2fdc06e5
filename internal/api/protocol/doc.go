// Package protocol defines the JSON wire format shared by every transport.
//
// Requests carry an action tag and a device identifier; responses always
// include "success" and express timestamps as Unix milliseconds. The HTTP
// handlers, the gRPC service and the client transports all use these types.
package protocol
