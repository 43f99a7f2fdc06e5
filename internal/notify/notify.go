package notify

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
)

// Publisher pushes a fired alarm to interested devices and returns a delivery identifier.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) (string, error)
}

// TopicManager maintains the set of push tokens subscribed to the alarm topic.
type TopicManager interface {
	Subscribe(ctx context.Context, token string) error
	Unsubscribe(ctx context.Context, token string) error
}

// Notifier is a publisher that also manages topic subscriptions.
type Notifier interface {
	Publisher
	TopicManager
}

// Multi fans every call out to all of its notifiers.
// The first non-empty message ID is returned; errors are joined.
type Multi []Notifier

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, event domain.Event) (string, error) {
	var (
		messageID string
		errs      []error
	)

	for _, n := range m {
		id, err := n.Publish(ctx, event)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if messageID == "" {
			messageID = id
		}
	}

	if err := errors.Join(errs...); err != nil {
		return messageID, fmt.Errorf("publish alarm %s: %w", event.ID, err)
	}

	return messageID, nil
}

// Subscribe implements TopicManager.
func (m Multi) Subscribe(ctx context.Context, token string) error {
	var errs []error

	for _, n := range m {
		if err := n.Subscribe(ctx, token); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Unsubscribe implements TopicManager.
func (m Multi) Unsubscribe(ctx context.Context, token string) error {
	var errs []error

	for _, n := range m {
		if err := n.Unsubscribe(ctx, token); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
