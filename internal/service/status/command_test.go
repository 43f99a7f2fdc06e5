package status

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/shared-alarm/internal/api/protocol"
)

func sampleStatus() *protocol.GlobalStatusResponse {
	return &protocol.GlobalStatusResponse{
		Success:           true,
		TotalConnections:  2,
		ActiveConnections: 1,
		Devices: []protocol.Device{{
			DeviceID:   "device_a",
			LastSeen:   1_700_000_000_000,
			DeviceInfo: map[string]string{"platform": "linux"},
		}},
		AlarmHistory: []protocol.Alarm{},
		Uptime:       12.5,
	}
}

// TestRender writes both formats with wire field names.
func TestRender(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	require.NoError(t, Render(&out, sampleStatus(), FormatJSON))
	require.Contains(t, out.String(), `"totalConnections": 2`)

	out.Reset()

	require.NoError(t, Render(&out, sampleStatus(), FormatYAML))
	require.Contains(t, out.String(), "activeConnections: 1")
	require.Contains(t, out.String(), "deviceId: device_a")
	require.Contains(t, out.String(), "lastSeen: 1700000000000")
	require.Contains(t, out.String(), "uptime: 12.5")

	require.ErrorIs(t, Render(&out, sampleStatus(), "xml"), errUnknownFormat)
}

// TestRun reads the status over HTTP from a stub server.
func TestRun(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/presence", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"totalConnections":4,"activeConnections":3,"devices":[],"alarmHistory":[],"uptime":1}`))
	}))
	t.Cleanup(srv.Close)

	var out bytes.Buffer

	err := Run(context.Background(), &Options{
		ConfigPath:    filepath.Join(t.TempDir(), "missing.yaml"),
		ServerAddress: srv.URL,
		Output:        &out,
	})
	require.Error(t, err)

	// The default settings file is optional.
	err = Run(context.Background(), &Options{
		ServerAddress: srv.URL,
		Transport:     "http",
		Output:        &out,
	})
	require.NoError(t, err)
	require.Contains(t, out.String(), `"totalConnections": 4`)
}
