package presence

import (
	"fmt"
	"time"

	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
)

// Action selects the operation a Command performs.
type Action string

// Supported actions.
const (
	ActionConnect    Action = "connect"
	ActionDisconnect Action = "disconnect"
	ActionSendAlarm  Action = "sendAlarm"
	ActionPing       Action = "ping"
	ActionGetStatus  Action = "getStatus"
	ActionPollAlarms Action = "pollAlarms"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionConnect, ActionDisconnect, ActionSendAlarm, ActionPing, ActionGetStatus, ActionPollAlarms:
		return a, nil
	case "":
		return "", fmt.Errorf("action is required: %w", domain.ErrInvalidRequest)
	default:
		return "", fmt.Errorf("unknown action %q: %w", s, domain.ErrInvalidRequest)
	}
}

// AlarmPayload carries the alarm data of a sendAlarm command.
type AlarmPayload struct {
	// Type must be "sound" or "vibrate".
	Type string
	// Message is optional.
	Message string
}

// Command is one device request to the multiplexed operation.
type Command struct {
	// Action selects the operation.
	Action Action
	// DeviceID identifies the calling device.
	DeviceID string
	// Metadata is used by connect only.
	Metadata domain.Metadata
	// Alarm is required by sendAlarm only.
	Alarm *AlarmPayload
	// Since is the watermark for pollAlarms.
	Since time.Time
}

// Result holds the outcome of a Command; exactly one field matching the action is set.
type Result struct {
	Action     Action
	Connect    *ConnectResult
	Disconnect *DisconnectResult
	Ping       *PingResult
	Send       *SendResult
	Status     *StatusResult
	Poll       *PollResult
}

// Handle executes cmd against the engine. Invalid commands return an error
// wrapping ErrInvalidRequest or ErrInvalidArgument and leave state untouched.
func (e *Engine) Handle(cmd *Command) (*Result, error) {
	if cmd == nil {
		return nil, fmt.Errorf("command is required: %w", domain.ErrInvalidRequest)
	}

	if _, err := ParseAction(string(cmd.Action)); err != nil {
		return nil, err
	}

	var (
		result = &Result{Action: cmd.Action}
		err    error
	)

	switch cmd.Action {
	case ActionConnect:
		result.Connect, err = e.Connect(cmd.DeviceID, cmd.Metadata)
	case ActionDisconnect:
		result.Disconnect, err = e.Disconnect(cmd.DeviceID)
	case ActionPing:
		result.Ping, err = e.Ping(cmd.DeviceID)
	case ActionGetStatus:
		result.Status, err = e.Status(cmd.DeviceID)
	case ActionPollAlarms:
		result.Poll, err = e.PollAlarms(cmd.DeviceID, cmd.Since)
	case ActionSendAlarm:
		if cmd.Alarm == nil {
			return nil, fmt.Errorf("alarmData is required for %s: %w", ActionSendAlarm, domain.ErrInvalidRequest)
		}

		result.Send, err = e.SendAlarm(cmd.DeviceID, cmd.Alarm.Type, cmd.Alarm.Message)
	}

	if err != nil {
		return nil, err
	}

	return result, nil
}
