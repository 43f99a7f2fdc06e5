// Package notify delivers fired alarms over optional push channels.
//
// Polling through the presence engine stays the source of truth; publishers
// only shorten the time until a device hears about an alarm. A failed publish
// never affects the alarm that was already recorded.
package notify
