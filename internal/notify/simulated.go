package notify

import (
	"context"
	"strconv"
	"time"

	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
	"github.com/oshokin/shared-alarm/internal/logger"
)

// Simulated pretends to deliver alarms and only logs them.
// It is the default when no push backend is configured.
type Simulated struct {
	// now stamps generated message IDs.
	now func() time.Time
}

// NewSimulated returns a Simulated notifier. A nil clock defaults to time.Now.
func NewSimulated(now func() time.Time) *Simulated {
	if now == nil {
		now = time.Now
	}

	return &Simulated{now: now}
}

// Publish logs the event and returns a "sim_<unix ms>" message ID.
func (s *Simulated) Publish(ctx context.Context, event domain.Event) (string, error) {
	messageID := "sim_" + strconv.FormatInt(s.now().UnixMilli(), 10)

	logger.InfoKV(ctx, "Simulated alarm push",
		"message_id", messageID,
		"alarm_id", event.ID,
		"type", event.Type,
		"sender_id", event.SenderID,
	)

	return messageID, nil
}

// Subscribe logs the token.
func (s *Simulated) Subscribe(ctx context.Context, token string) error {
	logger.InfoKV(ctx, "Simulated topic subscription", "token", redact(token))

	return nil
}

// Unsubscribe logs the token.
func (s *Simulated) Unsubscribe(ctx context.Context, token string) error {
	logger.InfoKV(ctx, "Simulated topic unsubscription", "token", redact(token))

	return nil
}

// redact keeps only a short prefix of a push token for logs.
func redact(token string) string {
	const visible = 8

	if len(token) <= visible {
		return token
	}

	return token[:visible] + "..."
}
