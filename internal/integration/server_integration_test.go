package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpcapi "github.com/oshokin/shared-alarm/internal/api/grpc/alarm"
	"github.com/oshokin/shared-alarm/internal/api/protocol"
	"github.com/oshokin/shared-alarm/internal/config"
	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
	"github.com/oshokin/shared-alarm/internal/notify"
	"github.com/oshokin/shared-alarm/internal/service/common"
	"github.com/oshokin/shared-alarm/internal/service/poller"
	"github.com/oshokin/shared-alarm/internal/service/server"
	"github.com/oshokin/shared-alarm/internal/service/status"
)

// runningServer is a live server bound to loopback ports.
type runningServer struct {
	// httpURL is the base URL of the JSON API.
	httpURL string
	// grpcAddr is the gRPC host:port.
	grpcAddr string
}

// startServer starts the real server on ephemeral ports and stops it on cleanup.
func startServer(t *testing.T) *runningServer {
	t.Helper()

	settings := &config.Config{
		Server: config.ServerConfig{
			HTTPAddress:     "127.0.0.1:0",
			GRPCAddress:     "127.0.0.1:0",
			ShutdownTimeout: 2 * time.Second,
		},
	}
	require.NoError(t, config.Validate(settings))

	ctx, cancel := context.WithCancel(context.Background())

	srv, err := server.New(ctx, &settings.Server)
	require.NoError(t, err)
	require.NoError(t, srv.Listen(ctx))

	done := make(chan error, 1)

	go func() {
		done <- srv.Serve(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	return &runningServer{
		httpURL:  "http://" + srv.HTTPAddr(),
		grpcAddr: srv.GRPCAddr(),
	}
}

// recordingPlayer stores every played alarm.
type recordingPlayer struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPlayer) Play(_ context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *recordingPlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.events)
}

// TestTransports_ShareState drives one device over HTTP and another over gRPC against the same engine.
func TestTransports_ShareState(t *testing.T) {
	t.Parallel()

	srv := startServer(t)
	ctx := context.Background()

	httpClient, err := common.NewHTTPClient(srv.httpURL, common.WithCallTimeout(2*time.Second))
	require.NoError(t, err)

	grpcClient, err := common.Dial(ctx, srv.grpcAddr, common.WithCallTimeout(2*time.Second))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = httpClient.Close()
		_ = grpcClient.Close()
	})

	_, err = httpClient.Do(ctx, &protocol.Request{Action: "connect", DeviceID: "device_http"})
	require.NoError(t, err)

	_, err = grpcClient.Do(ctx, &protocol.Request{Action: "connect", DeviceID: "device_grpc"})
	require.NoError(t, err)

	sent, err := grpcClient.Do(ctx, &protocol.Request{
		Action:    "sendAlarm",
		DeviceID:  "device_grpc",
		AlarmData: &protocol.AlarmData{Type: "vibrate", Message: "fire drill"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"device_http"}, sent.Recipients)

	since := int64(0)

	polled, err := httpClient.Do(ctx, &protocol.Request{Action: "pollAlarms", DeviceID: "device_http", Since: &since})
	require.NoError(t, err)
	require.Len(t, polled.Alarms, 1)
	require.Equal(t, sent.Alarm.ID, polled.Alarms[0].ID)
	require.Equal(t, "fire drill", polled.Alarms[0].Message)

	global, err := grpcClient.GlobalStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, global.TotalConnections)
	require.Equal(t, 2, global.ActiveConnections)
	require.Len(t, global.AlarmHistory, 1)

	_, err = httpClient.Do(ctx, &protocol.Request{Action: "launch", DeviceID: "device_http"})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = grpcClient.Do(ctx, &protocol.Request{Action: "connect"})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

// TestPoller_EndToEnd runs a listening poller and a sending poller over HTTP.
func TestPoller_EndToEnd(t *testing.T) {
	t.Parallel()

	srv := startServer(t)

	transport, err := common.NewHTTPClient(srv.httpURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = transport.Close()
	})

	listenerPlayer, senderPlayer := new(recordingPlayer), new(recordingPlayer)
	listener := poller.New(transport, listenerPlayer, poller.WithPollInterval(20*time.Millisecond))
	sender := poller.New(transport, senderPlayer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- listener.Run(ctx)
	}()

	require.Eventually(t, listener.Connected, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sender.Connect(context.Background()))

	_, err = sender.Send(context.Background(), "sound", "")
	require.NoError(t, err)
	require.Equal(t, 1, senderPlayer.count())

	require.Eventually(t, func() bool { return listenerPlayer.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Later polls never replay the same alarm.
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, listenerPlayer.count())

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, sender.Close(context.Background()))

	global, err := transport.GlobalStatus(context.Background())
	require.NoError(t, err)
	require.Zero(t, global.TotalConnections)
}

// TestServer_Stream pushes accepted alarms to websocket subscribers.
func TestServer_Stream(t *testing.T) {
	t.Parallel()

	srv := startServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.httpURL, "http") + "/api/stream"

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	_ = resp.Body.Close()

	t.Cleanup(func() {
		_ = conn.Close()
	})

	client, err := common.NewHTTPClient(srv.httpURL)
	require.NoError(t, err)

	// The hub registers the socket asynchronously; keep sending until a frame arrives.
	frames := make(chan notify.StreamMessage, 1)

	go func() {
		var message notify.StreamMessage
		if conn.ReadJSON(&message) == nil {
			frames <- message
		}
	}()

	var frame notify.StreamMessage

	require.Eventually(t, func() bool {
		_, sendErr := client.Do(context.Background(), &protocol.Request{
			Action:    "sendAlarm",
			DeviceID:  "device_ws",
			AlarmData: &protocol.AlarmData{Type: "sound"},
		})
		if sendErr != nil {
			return false
		}

		select {
		case frame = <-frames:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, "alarm", frame.Type)
	require.Equal(t, "device_ws", frame.Alarm.SenderID)
}

// TestServer_Auxiliary checks gRPC health, metrics and the status command against a live server.
func TestServer_Auxiliary(t *testing.T) {
	t.Parallel()

	srv := startServer(t)
	ctx := context.Background()

	conn, err := grpc.NewClient(srv.grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
	})

	health, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: grpcapi.ServiceName})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, health.GetStatus())

	client, err := common.NewHTTPClient(srv.httpURL)
	require.NoError(t, err)

	_, err = client.Do(ctx, &protocol.Request{Action: "ping", DeviceID: "device_m"})
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.httpURL+"/metrics", http.NoBody)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	_ = resp.Body.Close()

	require.Contains(t, string(body), `shared_alarm_requests_total{action="ping",outcome="ok"} 1`)

	var out strings.Builder

	err = status.Run(ctx, &status.Options{
		ServerAddress: srv.grpcAddr,
		Transport:     config.TransportGRPC,
		Output:        &out,
	})
	require.NoError(t, err)

	var rendered protocol.GlobalStatusResponse
	require.NoError(t, json.Unmarshal([]byte(out.String()), &rendered))
	require.True(t, rendered.Success)
	require.Zero(t, rendered.TotalConnections)
}
