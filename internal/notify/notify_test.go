package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/shared-alarm/internal/api/protocol"
	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
)

var errTestBackend = errors.New("backend unavailable")

func testEvent() domain.Event {
	return domain.Event{
		ID:        "alarm-1",
		Type:      domain.TypeSound,
		Message:   "fire drill",
		Timestamp: time.UnixMilli(1_700_000_000_000),
		SenderID:  "device_a",
	}
}

// fakeNotifier records calls and fails when err is set.
type fakeNotifier struct {
	// id is returned by Publish.
	id string
	// err is returned by every call.
	err error
	// published collects the events passed to Publish.
	published []domain.Event
	// tokens collects the subscribed tokens.
	tokens []string
}

func (f *fakeNotifier) Publish(_ context.Context, event domain.Event) (string, error) {
	f.published = append(f.published, event)

	return f.id, f.err
}

func (f *fakeNotifier) Subscribe(_ context.Context, token string) error {
	f.tokens = append(f.tokens, token)

	return f.err
}

func (f *fakeNotifier) Unsubscribe(context.Context, string) error {
	return f.err
}

// TestMulti_JoinsErrors ensures one failing backend does not stop the others.
func TestMulti_JoinsErrors(t *testing.T) {
	t.Parallel()

	failing := &fakeNotifier{err: errTestBackend}
	healthy := &fakeNotifier{id: "msg-1"}

	multi := Multi{failing, healthy}

	id, err := multi.Publish(context.Background(), testEvent())
	require.ErrorIs(t, err, errTestBackend)
	require.Equal(t, "msg-1", id)
	require.Len(t, healthy.published, 1)

	err = multi.Subscribe(context.Background(), "token")
	require.ErrorIs(t, err, errTestBackend)
	require.Equal(t, []string{"token"}, healthy.tokens)

	id, err = Multi{healthy}.Publish(context.Background(), testEvent())
	require.NoError(t, err)
	require.Equal(t, "msg-1", id)
}

// TestSimulated_MessageID checks the sim_<ms> identifier.
func TestSimulated_MessageID(t *testing.T) {
	t.Parallel()

	sim := NewSimulated(func() time.Time { return time.UnixMilli(1234) })

	id, err := sim.Publish(context.Background(), testEvent())
	require.NoError(t, err)
	require.Equal(t, "sim_1234", id)

	require.NoError(t, sim.Subscribe(context.Background(), "a-very-long-push-token"))
	require.NoError(t, sim.Unsubscribe(context.Background(), "short"))
	require.Equal(t, "a-very-l...", redact("a-very-long-push-token"))
}

// fakeRedis captures commands instead of talking to a server.
type fakeRedis struct {
	// err fails every command when set.
	err error
	// channel and payload hold the last publish.
	channel string
	payload []byte
	// sets maps keys to their members.
	sets map[string]map[string]struct{}
	// closed is set by Close.
	closed bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{sets: make(map[string]map[string]struct{})}
}

func (f *fakeRedis) result(ctx context.Context, val int64) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(val)
	}

	return cmd
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)

	return f.result(ctx, 1)
}

func (f *fakeRedis) SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd {
	if f.sets[key] == nil {
		f.sets[key] = make(map[string]struct{})
	}

	for _, m := range members {
		f.sets[key][m.(string)] = struct{}{}
	}

	return f.result(ctx, int64(len(members)))
}

func (f *fakeRedis) SRem(ctx context.Context, key string, members ...any) *redis.IntCmd {
	for _, m := range members {
		delete(f.sets[key], m.(string))
	}

	return f.result(ctx, int64(len(members)))
}

func (f *fakeRedis) Close() error {
	f.closed = true

	return nil
}

// TestRedis_PublishAndTokens verifies the channel, payload and token set.
func TestRedis_PublishAndTokens(t *testing.T) {
	t.Parallel()

	client := newFakeRedis()
	notifier := NewRedis(client, "")

	id, err := notifier.Publish(context.Background(), testEvent())
	require.NoError(t, err)
	require.Equal(t, "alarm-1", id)
	require.Equal(t, protocol.Topic, client.channel)
	require.JSONEq(t,
		`{"id":"alarm-1","type":"sound","message":"fire drill","timestamp":1700000000000,"senderId":"device_a"}`,
		string(client.payload))

	require.NoError(t, notifier.Subscribe(context.Background(), "tok"))
	require.Contains(t, client.sets["shared_alarm_global:tokens"], "tok")

	require.NoError(t, notifier.Unsubscribe(context.Background(), "tok"))
	require.Empty(t, client.sets["shared_alarm_global:tokens"])

	require.NoError(t, notifier.Close())
	require.True(t, client.closed)
}

// TestRedis_Errors wraps command failures.
func TestRedis_Errors(t *testing.T) {
	t.Parallel()

	client := newFakeRedis()
	client.err = errTestBackend
	notifier := NewRedis(client, "alarms")

	_, err := notifier.Publish(context.Background(), testEvent())
	require.ErrorIs(t, err, errTestBackend)

	err = notifier.Subscribe(context.Background(), "tok")
	require.ErrorIs(t, err, errTestBackend)
	require.Contains(t, err.Error(), "alarms:tokens")
}

// TestNewRedisClient_InvalidURL rejects malformed URLs before dialing.
func TestNewRedisClient_InvalidURL(t *testing.T) {
	t.Parallel()

	_, err := NewRedisClient(context.Background(), "not-a-redis-url")
	require.Error(t, err)
}

// TestHub_Broadcast streams a published alarm to a websocket client.
func TestHub_Broadcast(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	srv := httptest.NewServer(hub)

	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	id, err := hub.Publish(context.Background(), testEvent())
	require.NoError(t, err)
	require.Equal(t, "alarm-1", id)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg StreamMessage
	require.NoError(t, json.Unmarshal(frame, &msg))
	require.Equal(t, "alarm", msg.Type)
	require.Equal(t, "device_a", msg.Alarm.SenderID)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Close())
}
