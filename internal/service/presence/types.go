package presence

import (
	"time"

	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
)

// ConnectResult is returned by Connect.
type ConnectResult struct {
	// DeviceID echoes the connected device.
	DeviceID string
	// ConnectionsCount is the registry size after the call.
	ConnectionsCount int
	// AlarmHistory holds the most recent alarms, oldest first, to bootstrap the client.
	AlarmHistory []domain.Event
}

// DisconnectResult is returned by Disconnect.
type DisconnectResult struct {
	// DeviceID echoes the disconnected device.
	DeviceID string
	// Removed is false when the device was not registered.
	Removed bool
	// ConnectionsCount is the registry size after the call.
	ConnectionsCount int
}

// PingResult is returned by Ping.
type PingResult struct {
	// DeviceID echoes the pinging device.
	DeviceID string
	// Known is false when the device was not registered and nothing was refreshed.
	Known bool
	// Timestamp is the server time of the ping.
	Timestamp time.Time
}

// SendResult is returned by SendAlarm.
type SendResult struct {
	// Alarm is the stored event with its server-assigned timestamp.
	Alarm domain.Event
	// ConnectionsCount is the registry size at send time.
	ConnectionsCount int
	// Recipients are the other registered devices, sorted.
	Recipients []string
}

// StatusResult is returned by Status.
type StatusResult struct {
	// DeviceID echoes the queried device.
	DeviceID string
	// Connected reports registry membership.
	Connected bool
	// LastSeen is zero when the device is not registered.
	LastSeen time.Time
	// ConnectionsCount is the registry size.
	ConnectionsCount int
	// AlarmHistory holds the most recent alarms, oldest first.
	AlarmHistory []domain.Event
}

// PollResult is returned by PollAlarms.
type PollResult struct {
	// DeviceID echoes the polling device.
	DeviceID string
	// Connected reports registry membership.
	Connected bool
	// ConnectionsCount is the registry size.
	ConnectionsCount int
	// Alarms are the foreign alarms newer than the requested watermark, oldest first.
	Alarms []domain.Event
	// Watermark is the highest timestamp among Alarms, or the requested one when Alarms is empty.
	Watermark time.Time
}

// GlobalStatus is the dashboard view of the engine.
type GlobalStatus struct {
	// TotalConnections counts every registered device.
	TotalConnections int
	// ActiveConnections counts devices seen within the activity window.
	ActiveConnections int
	// Devices lists the active devices with their metadata.
	Devices []domain.Device
	// AlarmHistory holds the most recent alarms, oldest first.
	AlarmHistory []domain.Event
	// Uptime is the time since the engine was constructed.
	Uptime time.Duration
}
