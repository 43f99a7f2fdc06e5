package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/oshokin/shared-alarm/internal/api/protocol"
	"github.com/oshokin/shared-alarm/internal/config"
	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
	"github.com/oshokin/shared-alarm/internal/logger"
	"github.com/oshokin/shared-alarm/internal/service/common"
	"github.com/oshokin/shared-alarm/internal/service/effect"
)

// Remote actions issued by the poller.
const (
	actionConnect    = "connect"
	actionDisconnect = "disconnect"
	actionSendAlarm  = "sendAlarm"
	actionPing       = "ping"
	actionGetStatus  = "getStatus"
	actionPollAlarms = "pollAlarms"
)

// maxBackoffDoublings caps the reconnect delay at ReconnectDelay * 2^maxBackoffDoublings.
const maxBackoffDoublings = 4

// ErrNotConnected is returned by operations that need a registered device.
var ErrNotConnected = errors.New("device is not connected")

// Poller discovers foreign alarms exactly once by polling with a watermark.
type Poller struct {
	// transport carries requests to the server.
	transport common.Transport
	// player renders alarms locally.
	player effect.Player
	// deviceID identifies this device.
	deviceID string
	// deviceInfo is sent with every connect.
	deviceInfo map[string]any
	// pollInterval is the delay between alarm polls.
	pollInterval time.Duration
	// pingInterval is the delay between liveness pings.
	pingInterval time.Duration
	// reconnectDelay is the first reconnect delay.
	reconnectDelay time.Duration
	// reconnectAttempts caps reconnect attempts per failed ping.
	reconnectAttempts uint
	// skipBacklog starts the watermark at the newest alarm known on connect.
	skipBacklog bool
	// statusPolling uses getStatus instead of pollAlarms.
	statusPolling bool
	// now stamps local playback events.
	now func() time.Time

	// mu guards the fields below.
	mu sync.Mutex
	// connected reports whether the server has this device registered.
	connected bool
	// watermark is the timestamp of the newest processed alarm, in Unix milliseconds.
	watermark int64
}

// Option configures a Poller.
type Option func(*Poller)

// WithDeviceID pins the device identity. Empty keeps the generated one.
func WithDeviceID(id string) Option {
	return func(p *Poller) {
		if id != "" {
			p.deviceID = id
		}
	}
}

// WithDeviceInfo sets the metadata sent on connect.
func WithDeviceInfo(info map[string]any) Option {
	return func(p *Poller) {
		p.deviceInfo = info
	}
}

// WithPollInterval sets the delay between alarm polls.
func WithPollInterval(interval time.Duration) Option {
	return func(p *Poller) {
		if interval > 0 {
			p.pollInterval = interval
		}
	}
}

// WithPingInterval sets the delay between liveness pings.
func WithPingInterval(interval time.Duration) Option {
	return func(p *Poller) {
		if interval > 0 {
			p.pingInterval = interval
		}
	}
}

// WithReconnect sets the first reconnect delay and the attempt cap.
func WithReconnect(delay time.Duration, attempts uint) Option {
	return func(p *Poller) {
		if delay > 0 {
			p.reconnectDelay = delay
		}

		if attempts > 0 {
			p.reconnectAttempts = attempts
		}
	}
}

// WithSkipBacklog makes the first connect skip alarms fired before it.
func WithSkipBacklog(skip bool) Option {
	return func(p *Poller) {
		p.skipBacklog = skip
	}
}

// WithStatusPolling polls through getStatus for servers without pollAlarms.
func WithStatusPolling(enabled bool) Option {
	return func(p *Poller) {
		p.statusPolling = enabled
	}
}

// WithClock overrides the time source for local playback.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a poller with a fresh device identifier.
func New(transport common.Transport, player effect.Player, opts ...Option) *Poller {
	p := &Poller{
		transport:         transport,
		player:            player,
		deviceID:          common.NewDeviceID(),
		pollInterval:      config.DefaultPollInterval,
		pingInterval:      config.DefaultPingInterval,
		reconnectDelay:    config.DefaultReconnectDelay,
		reconnectAttempts: config.DefaultReconnectAttempts,
		now:               time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.player == nil {
		p.player = effect.LogPlayer{}
	}

	return p
}

// DeviceID returns the identifier this poller registers with.
func (p *Poller) DeviceID() string {
	return p.deviceID
}

// Connected reports whether the last exchange left the device registered.
func (p *Poller) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.connected
}

// Watermark returns the timestamp of the newest processed alarm in Unix milliseconds.
func (p *Poller) Watermark() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.watermark
}

// Run connects, then polls and pings on their intervals until ctx is canceled.
// The device is disconnected before Run returns.
func (p *Poller) Run(ctx context.Context) error {
	ctx = logger.WithKV(ctx, "device_id", p.deviceID)

	if err := p.Connect(ctx); err != nil {
		logger.WarnKV(ctx, "Initial connect failed, retrying on next poll", "error", err)
	}

	pollTicker := time.NewTicker(p.pollInterval)
	defer pollTicker.Stop()

	pingTicker := time.NewTicker(p.pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return p.Close(ctx)
		case <-pollTicker.C:
			p.Tick(ctx)
		case <-pingTicker.C:
			p.Ping(ctx)
		}
	}
}

// Connect registers the device with the server.
func (p *Poller) Connect(ctx context.Context) error {
	response, err := p.transport.Do(ctx, &protocol.Request{
		Action:     actionConnect,
		DeviceID:   p.deviceID,
		DeviceInfo: p.deviceInfo,
	})
	if err != nil {
		p.setConnected(false)

		return err
	}

	p.mu.Lock()
	p.connected = true

	if p.skipBacklog && p.watermark == 0 {
		for _, alarm := range response.AlarmHistory {
			p.watermark = max(p.watermark, alarm.Timestamp)
		}
	}

	watermark := p.watermark
	p.mu.Unlock()

	logger.InfoKV(ctx, "Connected to alarm server",
		"connections", response.ConnectionsCount,
		"watermark", watermark,
	)

	return nil
}

// Tick runs one poll step: connect when not connected, otherwise fetch and play new alarms.
func (p *Poller) Tick(ctx context.Context) {
	if !p.Connected() {
		if err := p.Connect(ctx); err != nil {
			logger.WarnKV(ctx, "Connect failed", "error", err)
		}

		return
	}

	played, err := p.poll(ctx)
	if err != nil {
		logger.WarnKV(ctx, "Poll failed", "error", err)

		return
	}

	if played > 0 {
		logger.DebugKV(ctx, "Alarms played", "count", played, "watermark", p.Watermark())
	}
}

// Ping reports liveness. On failure the device is marked disconnected and
// reconnects with exponential backoff; after the last attempt it waits for
// the next tick.
func (p *Poller) Ping(ctx context.Context) {
	if !p.Connected() {
		return
	}

	_, err := p.transport.Do(ctx, &protocol.Request{Action: actionPing, DeviceID: p.deviceID})
	if err == nil {
		return
	}

	logger.WarnKV(ctx, "Ping failed, reconnecting", "error", err)
	p.setConnected(false)

	if err = p.reconnect(ctx); err != nil {
		logger.WarnKV(ctx, "Reconnect gave up", "error", err)
	}
}

// Send fires an alarm. It is played locally right away, since the server
// never returns a device its own alarms.
func (p *Poller) Send(ctx context.Context, alarmType, message string) (*protocol.Alarm, error) {
	parsedType, err := domain.ParseType(alarmType)
	if err != nil {
		return nil, err
	}

	local := domain.Event{
		ID:        "local_" + uuid.NewString(),
		Type:      parsedType,
		Message:   message,
		Timestamp: p.now(),
		SenderID:  p.deviceID,
	}

	if err = p.player.Play(ctx, local); err != nil {
		logger.WarnKV(ctx, "Local playback failed", "error", err)
	}

	response, err := p.transport.Do(ctx, &protocol.Request{
		Action:    actionSendAlarm,
		DeviceID:  p.deviceID,
		AlarmData: &protocol.AlarmData{Type: parsedType.String(), Message: message},
	})
	if err != nil {
		return nil, err
	}

	if response.Alarm == nil {
		return nil, fmt.Errorf("sendAlarm response has no alarm: %w", common.ErrServerFailure)
	}

	logger.InfoKV(ctx, "Alarm sent",
		"alarm_id", response.Alarm.ID,
		"type", response.Alarm.Type,
		"recipients", len(response.Recipients),
	)

	return response.Alarm, nil
}

// Close disconnects the device if it is connected.
func (p *Poller) Close(ctx context.Context) error {
	if !p.Connected() {
		return nil
	}

	p.setConnected(false)

	_, err := p.transport.Do(context.WithoutCancel(ctx), &protocol.Request{
		Action:   actionDisconnect,
		DeviceID: p.deviceID,
	})
	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}

	logger.Info(ctx, "Disconnected from alarm server")

	return nil
}

// poll fetches alarms newer than the watermark and plays the foreign ones.
func (p *Poller) poll(ctx context.Context) (int, error) {
	since := p.Watermark()

	request := &protocol.Request{Action: actionPollAlarms, DeviceID: p.deviceID, Since: &since}
	if p.statusPolling {
		request = &protocol.Request{Action: actionGetStatus, DeviceID: p.deviceID}
	}

	response, err := p.transport.Do(ctx, request)
	if err != nil {
		return 0, err
	}

	// The server lost this device, e.g. after a restart or a stale sweep.
	if !response.Connected {
		p.setConnected(false)

		return 0, ErrNotConnected
	}

	alarms := response.Alarms
	if p.statusPolling {
		alarms = response.AlarmHistory
	}

	played := 0

	for i := range alarms {
		if !p.accept(&alarms[i]) {
			continue
		}

		if err = p.player.Play(ctx, alarms[i].Event()); err != nil {
			logger.WarnKV(ctx, "Alarm playback failed", "alarm_id", alarms[i].ID, "error", err)
		}

		played++
	}

	return played, nil
}

// accept reports whether alarm is foreign and newer than the watermark, and
// advances the watermark when it is.
func (p *Poller) accept(alarm *protocol.Alarm) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if alarm.SenderID == p.deviceID || alarm.Timestamp <= p.watermark {
		return false
	}

	p.watermark = alarm.Timestamp

	return true
}

// reconnect retries Connect with exponential backoff.
func (p *Poller) reconnect(ctx context.Context) error {
	policy := &backoff.ExponentialBackOff{
		InitialInterval:     p.reconnectDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         p.reconnectDelay << maxBackoffDoublings,
	}

	attempt := 0

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++

		err := p.Connect(ctx)
		if err != nil && domain.IsClientError(err) {
			return struct{}{}, backoff.Permanent(err)
		}

		return struct{}{}, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(p.reconnectAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.DebugKV(ctx, "Reconnect attempt failed", "attempt", attempt, "next", next.String(), "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("after %d attempts: %w", attempt, err)
	}

	return nil
}

func (p *Poller) setConnected(connected bool) {
	p.mu.Lock()
	p.connected = connected
	p.mu.Unlock()
}
