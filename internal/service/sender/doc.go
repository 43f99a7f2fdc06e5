// Package sender implements the alarm-sender command, which fires a single
// alarm from this device and exits.
package sender
