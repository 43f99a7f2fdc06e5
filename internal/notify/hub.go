package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oshokin/shared-alarm/internal/api/protocol"
	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
	"github.com/oshokin/shared-alarm/internal/logger"
)

const (
	// hubSendBuffer is the number of queued messages per stream client.
	hubSendBuffer = 16
	// hubWriteWait bounds a single websocket write.
	hubWriteWait = 10 * time.Second
	// hubPongWait is how long a client may stay silent before it is dropped.
	hubPongWait = 60 * time.Second
	// hubPingPeriod must be shorter than hubPongWait.
	hubPingPeriod = hubPongWait * 9 / 10
)

// StreamMessage is one frame sent to stream clients.
type StreamMessage struct {
	Type  string         `json:"type"`
	Alarm protocol.Alarm `json:"alarm"`
}

// hubClient is one connected stream consumer.
type hubClient struct {
	// conn is the upgraded websocket connection.
	conn *websocket.Conn
	// send queues encoded frames for the writer goroutine.
	send chan []byte
	// once guards closing send.
	once sync.Once
}

func (c *hubClient) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub broadcasts alarms to websocket stream clients. It is the push channel
// of deployments where devices keep a connection open.
type Hub struct {
	// upgrader turns HTTP requests into websocket connections.
	upgrader websocket.Upgrader
	// clients holds the live stream consumers.
	clients map[*hubClient]struct{}
	// mu protects clients.
	mu sync.RWMutex
}

// NewHub creates an empty hub accepting connections from any origin.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*hubClient]struct{}),
	}
}

// ServeHTTP upgrades the request and streams alarms until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithName(r.Context(), "stream")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnKV(ctx, "Websocket upgrade failed", "error", err)

		return
	}

	client := &hubClient{
		conn: conn,
		send: make(chan []byte, hubSendBuffer),
	}

	h.add(client)
	logger.InfoKV(ctx, "Stream client connected", "remote_addr", r.RemoteAddr, "clients", h.Len())

	go h.writeLoop(client)

	h.readLoop(client)
	logger.InfoKV(ctx, "Stream client disconnected", "remote_addr", r.RemoteAddr, "clients", h.Len())
}

// Publish queues the event for every client. Clients whose queue is full are dropped.
func (h *Hub) Publish(ctx context.Context, event domain.Event) (string, error) {
	frame, err := json.Marshal(StreamMessage{
		Type:  "alarm",
		Alarm: protocol.NewAlarm(&event),
	})
	if err != nil {
		return "", fmt.Errorf("marshal stream frame: %w", err)
	}

	var slow []*hubClient

	h.mu.RLock()
	for client := range h.clients {
		select {
		case client.send <- frame:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		logger.WarnKV(ctx, "Dropping slow stream client", "remote_addr", client.conn.RemoteAddr().String())
		h.remove(client)
	}

	return event.ID, nil
}

// Subscribe is a no-op: stream clients subscribe by connecting.
func (h *Hub) Subscribe(context.Context, string) error {
	return nil
}

// Unsubscribe is a no-op: stream clients unsubscribe by disconnecting.
func (h *Hub) Unsubscribe(context.Context, string) error {
	return nil
}

// Len returns the number of connected stream clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Close disconnects every stream client.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		delete(h.clients, client)
		client.close()
	}

	return nil
}

func (h *Hub) add(client *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = struct{}{}
}

func (h *Hub) remove(client *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.close()
	}
}

// readLoop discards inbound frames and keeps the pong deadline fresh.
func (h *Hub) readLoop(client *hubClient) {
	defer func() {
		h.remove(client)
		_ = client.conn.Close()
	}()

	_ = client.conn.SetReadDeadline(time.Now().Add(hubPongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(hubPongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop drains the client's queue and pings it periodically.
func (h *Hub) writeLoop(client *hubClient) {
	ticker := time.NewTicker(hubPingPeriod)

	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))

			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})

				return
			}

			if err := client.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))

			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
