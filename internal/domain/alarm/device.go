package alarm

import (
	"fmt"
	"maps"
	"time"
	"unicode/utf8"
)

// Metadata bounds.
const (
	// MaxMetadataKeys is the largest number of attributes a device may report.
	MaxMetadataKeys = 16
	// MaxMetadataKeyLength is the longest accepted attribute name, in bytes.
	MaxMetadataKeyLength = 64
	// MaxMetadataValueLength is the length values are truncated to, in bytes.
	MaxMetadataValueLength = 256
)

// Metadata is opaque, display-only device information (user agent, platform, locale).
type Metadata map[string]string

// NewMetadata validates and bounds raw attributes. Values longer than
// MaxMetadataValueLength are truncated on a rune boundary.
func NewMetadata(raw map[string]string) (Metadata, error) {
	if len(raw) > MaxMetadataKeys {
		return nil, fmt.Errorf("device info has %d keys, at most %d allowed: %w",
			len(raw), MaxMetadataKeys, ErrInvalidRequest)
	}

	out := make(Metadata, len(raw))

	for key, value := range raw {
		if key == "" || len(key) > MaxMetadataKeyLength {
			return nil, fmt.Errorf("device info key %q is empty or too long: %w", key, ErrInvalidRequest)
		}

		out[key] = truncate(value, MaxMetadataValueLength)
	}

	return out, nil
}

// Clone returns a copy of the metadata.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}

	return maps.Clone(m)
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut]
}

// Device is a client registered with the presence registry.
type Device struct {
	// ID is generated client-side and opaque to the server.
	ID string
	// LastSeen is refreshed on connect, ping and alarm send.
	LastSeen time.Time
	// Metadata is display-only.
	Metadata Metadata
}

// Clone returns a deep copy of the device.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}

	return &Device{
		ID:       d.ID,
		LastSeen: d.LastSeen,
		Metadata: d.Metadata.Clone(),
	}
}

// ActiveAt reports whether the device was seen within window before now.
func (d *Device) ActiveAt(now time.Time, window time.Duration) bool {
	return now.Sub(d.LastSeen) < window
}
