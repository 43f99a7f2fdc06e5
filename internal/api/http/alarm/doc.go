// Package alarm implements the HTTP JSON transport for the presence engine.
//
// Routes are served by a chi router. The multiplexed device operation lives at
// /api/presence, with /api/websocket kept as an alias for older clients.
package alarm
