package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
	"github.com/oshokin/shared-alarm/internal/service/presence"
)

// MaxRequestBytes bounds the size of a decoded request body.
const MaxRequestBytes = 64 << 10

// AlarmData is the alarm payload of a sendAlarm request.
type AlarmData struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// Request is the body of the multiplexed device operation.
type Request struct {
	Action     string         `json:"action"`
	DeviceID   string         `json:"deviceId"`
	DeviceInfo map[string]any `json:"deviceInfo,omitempty"`
	AlarmData  *AlarmData     `json:"alarmData,omitempty"`
	// Since is the pollAlarms watermark in Unix milliseconds.
	Since *int64 `json:"since,omitempty"`
}

// DecodeRequest reads a single JSON request. Unknown fields, trailing data and
// oversized bodies are rejected as ErrInvalidRequest.
func DecodeRequest(r io.Reader) (*Request, error) {
	var req Request
	if err := decodeStrict(r, &req); err != nil {
		return nil, err
	}

	return &req, nil
}

// DecodeRequestBytes is DecodeRequest over an in-memory body.
func DecodeRequestBytes(body []byte) (*Request, error) {
	if len(body) > MaxRequestBytes {
		return nil, fmt.Errorf("request body exceeds %d bytes: %w", MaxRequestBytes, domain.ErrInvalidRequest)
	}

	return DecodeRequest(bytes.NewReader(body))
}

// Command validates the request shape and converts it into an engine command.
// Fields that do not belong to the selected action are rejected.
func (r *Request) Command() (*presence.Command, error) {
	action, err := presence.ParseAction(r.Action)
	if err != nil {
		return nil, err
	}

	if r.DeviceID == "" {
		return nil, fmt.Errorf("deviceId is required: %w", domain.ErrInvalidRequest)
	}

	if r.DeviceInfo != nil && action != presence.ActionConnect {
		return nil, unexpectedField("deviceInfo", action)
	}

	if r.AlarmData != nil && action != presence.ActionSendAlarm {
		return nil, unexpectedField("alarmData", action)
	}

	if r.Since != nil && action != presence.ActionPollAlarms {
		return nil, unexpectedField("since", action)
	}

	cmd := &presence.Command{
		Action:   action,
		DeviceID: r.DeviceID,
	}

	switch action {
	case presence.ActionConnect:
		cmd.Metadata, err = metadataFromInfo(r.DeviceInfo)
		if err != nil {
			return nil, err
		}
	case presence.ActionSendAlarm:
		if r.AlarmData == nil || r.AlarmData.Type == "" {
			return nil, fmt.Errorf("alarmData with a type is required: %w", domain.ErrInvalidRequest)
		}

		cmd.Alarm = &presence.AlarmPayload{
			Type:    r.AlarmData.Type,
			Message: r.AlarmData.Message,
		}
	case presence.ActionPollAlarms:
		if r.Since != nil {
			if *r.Since < 0 {
				return nil, fmt.Errorf("since must not be negative: %w", domain.ErrInvalidRequest)
			}

			cmd.Since = FromMillis(*r.Since)
		}
	}

	return cmd, nil
}

func unexpectedField(field string, action presence.Action) error {
	return fmt.Errorf("field %q is not accepted by action %q: %w", field, action, domain.ErrInvalidRequest)
}

// metadataFromInfo flattens the free-form deviceInfo object into bounded string attributes.
// Scalars are formatted, nested values are kept as compact JSON.
func metadataFromInfo(info map[string]any) (domain.Metadata, error) {
	raw := make(map[string]string, len(info))

	for key, value := range info {
		switch v := value.(type) {
		case nil:
			raw[key] = ""
		case string:
			raw[key] = v
		case bool:
			raw[key] = strconv.FormatBool(v)
		case float64:
			raw[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			raw[key] = v.String()
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode device info %q: %v: %w", key, err, domain.ErrInvalidRequest)
			}

			raw[key] = string(encoded)
		}
	}

	return domain.NewMetadata(raw)
}
