// Package alarm contains core domain types for the shared alarm.
//
// It defines Device (a connected client and its liveness), Event (one fired
// alarm) and the error kinds every layer classifies failures with. Clone
// helpers avoid leaking internal references out of the in-memory stores.
package alarm
