package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
)

// Topic is the notification topic every device subscribes to.
const Topic = "shared_alarm_global"

// PushRequest is the body of the push-only send-alarm endpoint.
type PushRequest struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// PushResponse answers a push-only alarm.
type PushResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// TokenRequest is the body of the subscribe and unsubscribe endpoints.
type TokenRequest struct {
	Token string `json:"token"`
}

// TopicResponse answers subscribe and unsubscribe.
type TopicResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Topic   string `json:"topic"`
}

// DecodePushRequest reads a push request. A missing type is ErrInvalidRequest,
// an unknown one ErrInvalidArgument.
func DecodePushRequest(r io.Reader) (*PushRequest, domain.Type, error) {
	var req PushRequest
	if err := decodeStrict(r, &req); err != nil {
		return nil, "", err
	}

	if req.Type == "" {
		return nil, "", fmt.Errorf("type is required: %w", domain.ErrInvalidRequest)
	}

	alarmType, err := domain.ParseType(req.Type)
	if err != nil {
		return nil, "", err
	}

	return &req, alarmType, nil
}

// DecodeTokenRequest reads a subscription token; blank tokens are ErrInvalidRequest.
func DecodeTokenRequest(r io.Reader) (string, error) {
	var req TokenRequest
	if err := decodeStrict(r, &req); err != nil {
		return "", err
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		return "", fmt.Errorf("token is required: %w", domain.ErrInvalidRequest)
	}

	return token, nil
}

// decodeStrict decodes exactly one bounded JSON value without unknown fields.
func decodeStrict(r io.Reader, v any) error {
	decoder := json.NewDecoder(io.LimitReader(r, MaxRequestBytes+1))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %v: %w", err, domain.ErrInvalidRequest)
	}

	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("request body has trailing data: %w", domain.ErrInvalidRequest)
	}

	return nil
}
