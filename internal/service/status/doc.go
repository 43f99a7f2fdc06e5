// Package status implements the alarm-status command, a one-shot read of the
// server's global status for dashboards and debugging.
package status
