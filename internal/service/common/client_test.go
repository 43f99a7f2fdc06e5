//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	grpcapi "github.com/oshokin/shared-alarm/internal/api/grpc/alarm"
	"github.com/oshokin/shared-alarm/internal/api/protocol"
	"github.com/oshokin/shared-alarm/internal/config"
	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
	"github.com/oshokin/shared-alarm/internal/service/presence"
)

// engineService runs requests straight against a presence engine.
type engineService struct {
	// engine handles the commands.
	engine *presence.Engine
}

func (s *engineService) Dispatch(_ context.Context, req *protocol.Request) (any, error) {
	cmd, err := req.Command()
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Handle(cmd)
	if err != nil {
		return nil, err
	}

	return protocol.EncodeResult(result), nil
}

func (s *engineService) GlobalStatus(context.Context) *protocol.GlobalStatusResponse {
	return protocol.EncodeGlobalStatus(s.engine.GlobalStatus())
}

// TestDial_ValidatesAddress verifies that Dial rejects empty addresses.
func TestDial_ValidatesAddress(t *testing.T) {
	t.Parallel()

	c, err := Dial(context.Background(), "")
	require.Error(t, err)
	require.Nil(t, c)

	h, err := NewHTTPClient("  ")
	require.ErrorIs(t, err, errAddressRequired)
	require.Nil(t, h)
}

// TestOptions_callContext checks timeout vs cancel-only behavior of callContext.
func TestOptions_callContext(t *testing.T) {
	t.Parallel()

	o := &options{
		callTimeout: 0,
	}

	ctx, cancel := o.callContext(context.Background())
	cancel()

	require.NotNil(t, ctx)

	_, ok := ctx.Deadline()
	require.False(t, ok)

	o = newOptions([]Option{WithCallTimeout(10 * time.Millisecond), WithCallTimeout(-time.Second)})

	ctx, cancel = o.callContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 30*time.Millisecond)
}

// TestNewTransport selects the implementation from the settings.
func TestNewTransport(t *testing.T) {
	t.Parallel()

	transport, err := NewTransport(context.Background(), &config.ClientConfig{
		Transport:     config.TransportHTTP,
		ServerAddress: "http://127.0.0.1:8080/",
	})
	require.NoError(t, err)
	require.IsType(t, new(HTTPClient), transport)
	require.Equal(t, "http://127.0.0.1:8080", transport.(*HTTPClient).baseURL)
	require.NoError(t, transport.Close())

	transport, err = NewTransport(context.Background(), &config.ClientConfig{
		Transport:     config.TransportGRPC,
		ServerAddress: "127.0.0.1:50051",
	})
	require.NoError(t, err)
	require.IsType(t, new(GRPCClient), transport)
	require.NoError(t, transport.Close())

	_, err = NewTransport(context.Background(), &config.ClientConfig{Transport: "smoke"})
	require.ErrorIs(t, err, errUnsupportedTransport)
}

// TestHTTPClient_Roundtrip drives the client against a stub server speaking the wire format.
func TestHTTPClient_Roundtrip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.URL.Path != presencePath {
			w.WriteHeader(http.StatusNotFound)

			return
		}

		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`{"success":true,"totalConnections":3,"activeConnections":2,"devices":[],"alarmHistory":[],"uptime":1.5}`))

			return
		}

		req, err := protocol.DecodeRequest(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(protocol.ErrorResponse{Error: err.Error()})

			return
		}

		switch req.Action {
		case "ping":
			_, _ = w.Write([]byte(`{"success":true,"message":"Ping received","timestamp":1700000000000}`))
		case "getStatus":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"Failed to process request","details":"boom"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"unknown action"}`))
		}
	}))
	t.Cleanup(srv.Close)

	client, err := NewHTTPClient(srv.URL, WithCallTimeout(time.Second))
	require.NoError(t, err)

	ctx := context.Background()

	response, err := client.Do(ctx, &protocol.Request{Action: "ping", DeviceID: "device_a"})
	require.NoError(t, err)
	require.True(t, response.Success)
	require.Equal(t, int64(1_700_000_000_000), response.Timestamp)

	_, err = client.Do(ctx, &protocol.Request{Action: "explode", DeviceID: "device_a"})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
	require.True(t, domain.IsClientError(err))

	_, err = client.Do(ctx, &protocol.Request{Action: "getStatus", DeviceID: "device_a"})
	require.ErrorIs(t, err, ErrServerFailure)
	require.Contains(t, err.Error(), "boom")

	_, err = client.Do(ctx, nil)
	require.ErrorIs(t, err, errRequestRequired)

	global, err := client.GlobalStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, global.TotalConnections)
	require.InDelta(t, 1.5, global.Uptime, 0)
}

// TestGRPCClient_Roundtrip runs the client over bufconn against a real engine.
func TestGRPCClient_Roundtrip(t *testing.T) {
	t.Parallel()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	grpcapi.RegisterPresenceServer(srv, grpcapi.NewServer(&engineService{engine: presence.NewEngine()}))

	go func() {
		_ = srv.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	client := NewGRPCClient(conn, WithCallTimeout(time.Second))

	t.Cleanup(func() {
		_ = client.Close()

		srv.Stop()
	})

	ctx := context.Background()

	response, err := client.Do(ctx, &protocol.Request{
		Action:     "connect",
		DeviceID:   "device_a",
		DeviceInfo: DetectDeviceInfo("test"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, response.ConnectionsCount)

	response, err = client.Do(ctx, &protocol.Request{
		Action:    "sendAlarm",
		DeviceID:  "device_b",
		AlarmData: &protocol.AlarmData{Type: "sound"},
	})
	require.NoError(t, err)
	require.NotNil(t, response.Alarm)

	since := int64(0)

	response, err = client.Do(ctx, &protocol.Request{Action: "pollAlarms", DeviceID: "device_a", Since: &since})
	require.NoError(t, err)
	require.Len(t, response.Alarms, 1)
	require.Equal(t, "device_b", response.Alarms[0].SenderID)

	_, err = client.Do(ctx, &protocol.Request{
		Action:    "sendAlarm",
		DeviceID:  "device_b",
		AlarmData: &protocol.AlarmData{Type: "honk"},
	})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)

	global, err := client.GlobalStatus(ctx)
	require.NoError(t, err)
	// The sender never connected, so only device_a is registered.
	require.Equal(t, 1, global.TotalConnections)
	require.Equal(t, "test", global.Devices[0].DeviceInfo["client"])
}

// TestDeviceIdentity checks the generated identifier and detected metadata.
func TestDeviceIdentity(t *testing.T) {
	t.Parallel()

	id := NewDeviceID()
	require.True(t, strings.HasPrefix(id, deviceIDPrefix))
	require.NotEqual(t, id, NewDeviceID())

	info := DetectDeviceInfo("listener")
	require.NotEmpty(t, info["platform"])
	require.NotEmpty(t, info["arch"])
	require.Equal(t, "listener", info["client"])
}
