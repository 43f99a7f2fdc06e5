package alarm

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestParseType accepts the two known types and rejects everything else as InvalidArgument.
func TestParseType(t *testing.T) {
	t.Parallel()

	got, err := ParseType("sound")
	require.NoError(t, err)
	require.Equal(t, TypeSound, got)

	got, err = ParseType("vibrate")
	require.NoError(t, err)
	require.Equal(t, TypeVibrate, got)

	for _, bad := range []string{"", "honk", "SOUND"} {
		_, err = ParseType(bad)
		require.ErrorIs(t, err, ErrInvalidArgument)
		require.True(t, IsClientError(err))
	}
}

// TestNewMetadata verifies key limits and value truncation.
func TestNewMetadata(t *testing.T) {
	t.Parallel()

	m, err := NewMetadata(map[string]string{
		"platform":  "linux",
		"userAgent": strings.Repeat("é", MaxMetadataValueLength),
	})
	require.NoError(t, err)
	require.Equal(t, "linux", m["platform"])
	require.LessOrEqual(t, len(m["userAgent"]), MaxMetadataValueLength)
	require.True(t, strings.HasPrefix(strings.Repeat("é", MaxMetadataValueLength), m["userAgent"]))

	tooMany := make(map[string]string, MaxMetadataKeys+1)
	for i := range MaxMetadataKeys + 1 {
		tooMany[strings.Repeat("k", i+1)] = "v"
	}

	_, err = NewMetadata(tooMany)
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = NewMetadata(map[string]string{"": "v"})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

// TestDeviceClone verifies that Clone returns a deep copy and handles nil safely.
func TestDeviceClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Device)(nil).Clone())

	d := &Device{
		ID:       "device_1",
		LastSeen: time.Unix(100, 0),
		Metadata: Metadata{"platform": "linux"},
	}

	c := d.Clone()
	require.Equal(t, d, c)
	require.NotSame(t, d, c)

	c.Metadata["platform"] = "windows"
	require.Equal(t, "linux", d.Metadata["platform"])
}

// TestDeviceActiveAt checks the strict activity window boundary.
func TestDeviceActiveAt(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_000, 0)
	d := &Device{LastSeen: now.Add(-31 * time.Second)}
	require.False(t, d.ActiveAt(now, 30*time.Second))

	d.LastSeen = now.Add(-29 * time.Second)
	require.True(t, d.ActiveAt(now, 30*time.Second))

	d.LastSeen = now.Add(-30 * time.Second)
	require.False(t, d.ActiveAt(now, 30*time.Second))
}

// TestCloneEvents never returns nil and never aliases the input.
func TestCloneEvents(t *testing.T) {
	t.Parallel()

	require.NotNil(t, CloneEvents(nil))

	in := []Event{{ID: "a"}}
	out := CloneEvents(in)
	out[0].ID = "b"
	require.Equal(t, "a", in[0].ID)

	e := &Event{ID: "x", Type: TypeSound}
	require.Equal(t, e, e.Clone())
	require.NotSame(t, e, e.Clone())
	require.Nil(t, (*Event)(nil).Clone())
}
