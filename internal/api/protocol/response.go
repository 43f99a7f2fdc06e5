package protocol

import (
	"time"

	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
	"github.com/oshokin/shared-alarm/internal/service/presence"
)

// Alarm is the wire form of an alarm event.
type Alarm struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
	SenderID  string `json:"senderId"`
}

// Device is the wire form of a registered device in the global status.
type Device struct {
	DeviceID   string            `json:"deviceId"`
	LastSeen   int64             `json:"lastSeen"`
	DeviceInfo map[string]string `json:"deviceInfo"`
}

// ConnectResponse answers connect.
type ConnectResponse struct {
	Success          bool    `json:"success"`
	Message          string  `json:"message"`
	DeviceID         string  `json:"deviceId"`
	ConnectionsCount int     `json:"connectionsCount"`
	AlarmHistory     []Alarm `json:"alarmHistory"`
}

// DisconnectResponse answers disconnect.
type DisconnectResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	ConnectionsCount int    `json:"connectionsCount"`
}

// PingResponse answers ping.
type PingResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// SendAlarmResponse answers sendAlarm.
type SendAlarmResponse struct {
	Success          bool     `json:"success"`
	Message          string   `json:"message"`
	Alarm            Alarm    `json:"alarm"`
	ConnectionsCount int      `json:"connectionsCount"`
	Recipients       []string `json:"recipients"`
}

// StatusResponse answers getStatus.
type StatusResponse struct {
	Success          bool    `json:"success"`
	Connected        bool    `json:"connected"`
	DeviceID         string  `json:"deviceId"`
	LastSeen         *int64  `json:"lastSeen,omitempty"`
	ConnectionsCount int     `json:"connectionsCount"`
	AlarmHistory     []Alarm `json:"alarmHistory"`
}

// PollResponse answers pollAlarms.
type PollResponse struct {
	Success          bool    `json:"success"`
	Connected        bool    `json:"connected"`
	DeviceID         string  `json:"deviceId"`
	ConnectionsCount int     `json:"connectionsCount"`
	Alarms           []Alarm `json:"alarms"`
	Watermark        int64   `json:"watermark"`
}

// GlobalStatusResponse is the dashboard view returned without a request body.
type GlobalStatusResponse struct {
	Success           bool     `json:"success"`
	TotalConnections  int      `json:"totalConnections"`
	ActiveConnections int      `json:"activeConnections"`
	Devices           []Device `json:"devices"`
	AlarmHistory      []Alarm  `json:"alarmHistory"`
	// Uptime is in seconds.
	Uptime float64 `json:"uptime"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Response is the union of every action response. Clients decode any
// answer of the multiplexed operation into it.
type Response struct {
	Success          bool     `json:"success"`
	Message          string   `json:"message,omitempty"`
	DeviceID         string   `json:"deviceId,omitempty"`
	Connected        bool     `json:"connected,omitempty"`
	LastSeen         int64    `json:"lastSeen,omitempty"`
	ConnectionsCount int      `json:"connectionsCount"`
	AlarmHistory     []Alarm  `json:"alarmHistory,omitempty"`
	Alarm            *Alarm   `json:"alarm,omitempty"`
	Recipients       []string `json:"recipients,omitempty"`
	Timestamp        int64    `json:"timestamp,omitempty"`
	Alarms           []Alarm  `json:"alarms,omitempty"`
	Watermark        int64    `json:"watermark,omitempty"`
	Error            string   `json:"error,omitempty"`
	Details          string   `json:"details,omitempty"`
}

// Millis converts a time to Unix milliseconds; the zero time maps to 0.
func Millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixMilli()
}

// FromMillis converts Unix milliseconds to a time; 0 maps to the zero time.
func FromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}

	return time.UnixMilli(ms)
}

// NewAlarm converts a domain event into its wire form.
func NewAlarm(event *domain.Event) Alarm {
	return Alarm{
		ID:        event.ID,
		Type:      event.Type.String(),
		Message:   event.Message,
		Timestamp: Millis(event.Timestamp),
		SenderID:  event.SenderID,
	}
}

// Event converts a wire alarm back into a domain event.
func (a *Alarm) Event() domain.Event {
	return domain.Event{
		ID:        a.ID,
		Type:      domain.Type(a.Type),
		Message:   a.Message,
		Timestamp: FromMillis(a.Timestamp),
		SenderID:  a.SenderID,
	}
}

// NewAlarms converts events, never returning nil so JSON renders [].
func NewAlarms(events []domain.Event) []Alarm {
	out := make([]Alarm, 0, len(events))
	for i := range events {
		out = append(out, NewAlarm(&events[i]))
	}

	return out
}

// EncodeResult maps an engine result onto the response type of its action.
func EncodeResult(result *presence.Result) any {
	switch {
	case result.Connect != nil:
		return &ConnectResponse{
			Success:          true,
			Message:          "Device connected",
			DeviceID:         result.Connect.DeviceID,
			ConnectionsCount: result.Connect.ConnectionsCount,
			AlarmHistory:     NewAlarms(result.Connect.AlarmHistory),
		}
	case result.Disconnect != nil:
		return &DisconnectResponse{
			Success:          true,
			Message:          "Device disconnected",
			ConnectionsCount: result.Disconnect.ConnectionsCount,
		}
	case result.Ping != nil:
		return &PingResponse{
			Success:   true,
			Message:   "Ping received",
			Timestamp: Millis(result.Ping.Timestamp),
		}
	case result.Send != nil:
		recipients := result.Send.Recipients
		if recipients == nil {
			recipients = []string{}
		}

		return &SendAlarmResponse{
			Success:          true,
			Message:          "Alarm sent to all devices",
			Alarm:            NewAlarm(&result.Send.Alarm),
			ConnectionsCount: result.Send.ConnectionsCount,
			Recipients:       recipients,
		}
	case result.Status != nil:
		response := &StatusResponse{
			Success:          true,
			Connected:        result.Status.Connected,
			DeviceID:         result.Status.DeviceID,
			ConnectionsCount: result.Status.ConnectionsCount,
			AlarmHistory:     NewAlarms(result.Status.AlarmHistory),
		}

		if result.Status.Connected {
			lastSeen := Millis(result.Status.LastSeen)
			response.LastSeen = &lastSeen
		}

		return response
	case result.Poll != nil:
		return &PollResponse{
			Success:          true,
			Connected:        result.Poll.Connected,
			DeviceID:         result.Poll.DeviceID,
			ConnectionsCount: result.Poll.ConnectionsCount,
			Alarms:           NewAlarms(result.Poll.Alarms),
			Watermark:        Millis(result.Poll.Watermark),
		}
	default:
		return &Response{Success: true}
	}
}

// EncodeGlobalStatus maps the engine's global status onto its wire form.
func EncodeGlobalStatus(status *presence.GlobalStatus) *GlobalStatusResponse {
	devices := make([]Device, 0, len(status.Devices))
	for i := range status.Devices {
		devices = append(devices, Device{
			DeviceID:   status.Devices[i].ID,
			LastSeen:   Millis(status.Devices[i].LastSeen),
			DeviceInfo: status.Devices[i].Metadata.Clone(),
		})
	}

	return &GlobalStatusResponse{
		Success:           true,
		TotalConnections:  status.TotalConnections,
		ActiveConnections: status.ActiveConnections,
		Devices:           devices,
		AlarmHistory:      NewAlarms(status.AlarmHistory),
		Uptime:            status.Uptime.Seconds(),
	}
}
