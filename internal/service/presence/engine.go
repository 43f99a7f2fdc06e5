package presence

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
	"github.com/oshokin/shared-alarm/internal/repository/device"
	"github.com/oshokin/shared-alarm/internal/repository/history"
)

const (
	// DefaultActivityWindow is how recently a device must have been seen to count as active.
	DefaultActivityWindow = 30 * time.Second
	// BootstrapHistorySize is the number of recent alarms returned on connect and status.
	BootstrapHistorySize = 10
	// GlobalHistorySize is the number of recent alarms returned by the global status.
	GlobalHistorySize = 20
	// MaxMessageLength bounds the optional alarm text, in runes.
	MaxMessageLength = 500
)

// Clock returns the current time.
type Clock func() time.Time

// Engine combines the device registry and the alarm history into the
// operations devices invoke. All methods are safe for concurrent use and
// never block on I/O.
type Engine struct {
	// registry tracks connected devices.
	registry *device.Registry
	// history holds the most recent alarms.
	history *history.Log
	// now supplies the current time for results and uptime.
	now Clock
	// newID generates alarm event identifiers.
	newID func() string
	// started is when the engine was constructed.
	started time.Time
	// activityWindow classifies devices as active.
	activityWindow time.Duration
	// capacity is the history size bound.
	capacity int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used by the engine, its registry and its history.
func WithClock(now Clock) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithActivityWindow overrides DefaultActivityWindow.
func WithActivityWindow(window time.Duration) Option {
	return func(e *Engine) {
		if window > 0 {
			e.activityWindow = window
		}
	}
}

// WithHistoryCapacity overrides history.DefaultCapacity.
func WithHistoryCapacity(capacity int) Option {
	return func(e *Engine) {
		if capacity > 0 {
			e.capacity = capacity
		}
	}
}

// WithIDGenerator overrides the alarm event ID generator.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		if newID != nil {
			e.newID = newID
		}
	}
}

// NewEngine constructs an engine with an empty registry and history.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		now:            time.Now,
		newID:          uuid.NewString,
		activityWindow: DefaultActivityWindow,
		capacity:       history.DefaultCapacity,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.started = e.now()
	e.registry = device.NewRegistry(device.Clock(e.now))
	e.history = history.NewLog(e.capacity, history.Clock(e.now))

	return e
}

// ActivityWindow returns the configured activity window.
func (e *Engine) ActivityWindow() time.Duration {
	return e.activityWindow
}

// Connect registers the device, or refreshes it if already registered.
func (e *Engine) Connect(deviceID string, metadata domain.Metadata) (*ConnectResult, error) {
	if err := validateDeviceID(deviceID); err != nil {
		return nil, err
	}

	e.registry.Register(deviceID, metadata)

	return &ConnectResult{
		DeviceID:         deviceID,
		ConnectionsCount: e.registry.Len(),
		AlarmHistory:     e.history.Tail(BootstrapHistorySize),
	}, nil
}

// Disconnect removes the device. Unknown devices are a successful no-op.
func (e *Engine) Disconnect(deviceID string) (*DisconnectResult, error) {
	if err := validateDeviceID(deviceID); err != nil {
		return nil, err
	}

	removed := e.registry.Remove(deviceID)

	return &DisconnectResult{
		DeviceID:         deviceID,
		Removed:          removed,
		ConnectionsCount: e.registry.Len(),
	}, nil
}

// Ping refreshes the device's lastSeen. Unknown devices are a successful no-op.
func (e *Engine) Ping(deviceID string) (*PingResult, error) {
	if err := validateDeviceID(deviceID); err != nil {
		return nil, err
	}

	known := e.registry.Touch(deviceID)

	return &PingResult{
		DeviceID:  deviceID,
		Known:     known,
		Timestamp: e.now(),
	}, nil
}

// SendAlarm appends an alarm from deviceID and lists the other registered devices.
// The recipient list is informational: recipients learn of the alarm when they next poll.
func (e *Engine) SendAlarm(deviceID, alarmType, message string) (*SendResult, error) {
	if err := validateDeviceID(deviceID); err != nil {
		return nil, err
	}

	parsedType, err := domain.ParseType(alarmType)
	if err != nil {
		return nil, err
	}

	if utf8.RuneCountInString(message) > MaxMessageLength {
		return nil, fmt.Errorf("alarm message exceeds %d characters: %w", MaxMessageLength, domain.ErrInvalidArgument)
	}

	event := e.history.Append(domain.Event{
		ID:       e.newID(),
		Type:     parsedType,
		Message:  message,
		SenderID: deviceID,
	})

	e.registry.Touch(deviceID)

	return &SendResult{
		Alarm:            event,
		ConnectionsCount: e.registry.Len(),
		Recipients:       e.registry.IDs(deviceID),
	}, nil
}

// Status reports registry membership of deviceID along with recent alarms.
// Membership, not activity, decides Connected.
func (e *Engine) Status(deviceID string) (*StatusResult, error) {
	if err := validateDeviceID(deviceID); err != nil {
		return nil, err
	}

	d, connected := e.registry.Get(deviceID)

	result := &StatusResult{
		DeviceID:         deviceID,
		Connected:        connected,
		ConnectionsCount: e.registry.Len(),
		AlarmHistory:     e.history.Tail(BootstrapHistorySize),
	}

	if connected {
		result.LastSeen = d.LastSeen
	}

	return result, nil
}

// PollAlarms returns alarms newer than since that were not sent by deviceID.
// A registered caller has its lastSeen refreshed, since polling proves liveness.
func (e *Engine) PollAlarms(deviceID string, since time.Time) (*PollResult, error) {
	if err := validateDeviceID(deviceID); err != nil {
		return nil, err
	}

	connected := e.registry.Touch(deviceID)
	alarms := e.history.Since(since, deviceID)

	watermark := since
	for i := range alarms {
		if alarms[i].Timestamp.After(watermark) {
			watermark = alarms[i].Timestamp
		}
	}

	return &PollResult{
		DeviceID:         deviceID,
		Connected:        connected,
		ConnectionsCount: e.registry.Len(),
		Alarms:           alarms,
		Watermark:        watermark,
	}, nil
}

// GlobalStatus returns registry totals, the active devices and recent alarms.
func (e *Engine) GlobalStatus() *GlobalStatus {
	snapshot := e.registry.Snapshot(e.activityWindow)

	return &GlobalStatus{
		TotalConnections:  len(snapshot.All),
		ActiveConnections: len(snapshot.Active),
		Devices:           snapshot.Active,
		AlarmHistory:      e.history.Tail(GlobalHistorySize),
		Uptime:            snapshot.TakenAt.Sub(e.started),
	}
}

// Sweep removes devices not seen for at least grace. It implements the
// optional stale-device policy; a non-positive grace removes nothing.
func (e *Engine) Sweep(grace time.Duration) []string {
	return e.registry.Sweep(grace)
}

// HistoryLen returns the number of alarms held in the history.
func (e *Engine) HistoryLen() int {
	return e.history.Len()
}

// validateDeviceID rejects empty identifiers.
func validateDeviceID(deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("deviceId is required: %w", domain.ErrInvalidRequest)
	}

	return nil
}
