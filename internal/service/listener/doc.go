// Package listener implements the alarm-listener command: a long-running
// device that registers with the server, polls for alarms fired by other
// devices and plays each one exactly once.
package listener
