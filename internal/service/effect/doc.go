// Package effect renders received alarms on the local device, either as a log
// line or through a built-in OS sound command.
package effect
