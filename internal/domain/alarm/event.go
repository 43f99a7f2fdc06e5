package alarm

import (
	"fmt"
	"strings"
	"time"
)

// Type is the kind of effect an alarm triggers on receiving devices.
type Type string

const (
	// TypeSound plays an audible alarm.
	TypeSound Type = "sound"
	// TypeVibrate vibrates the receiving device.
	TypeVibrate Type = "vibrate"
)

// ParseType validates an alarm type received from a client.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.TrimSpace(s)); t {
	case TypeSound, TypeVibrate:
		return t, nil
	default:
		return "", fmt.Errorf("alarm type %q must be %q or %q: %w", s, TypeSound, TypeVibrate, ErrInvalidArgument)
	}
}

// String implements fmt.Stringer.
func (t Type) String() string {
	return string(t)
}

// Event is a single fired alarm. It is immutable once appended to the history.
type Event struct {
	// ID uniquely identifies the event.
	ID string
	// Type is the requested effect.
	Type Type
	// Message is optional human-readable text.
	Message string
	// Timestamp is assigned by the server when the event enters the history; it is the ordering key.
	Timestamp time.Time
	// SenderID is the device that fired the alarm. The device may be gone by the time the event is read.
	SenderID string
}

// Clone returns a copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}

	cloned := *e

	return &cloned
}

// CloneEvents copies a slice of events so callers cannot alias store internals.
func CloneEvents(events []Event) []Event {
	if events == nil {
		return []Event{}
	}

	out := make([]Event, len(events))
	copy(out, events)

	return out
}
