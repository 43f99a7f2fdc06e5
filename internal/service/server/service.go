package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/shared-alarm/internal/api/protocol"
	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
	"github.com/oshokin/shared-alarm/internal/logger"
	"github.com/oshokin/shared-alarm/internal/metrics"
	"github.com/oshokin/shared-alarm/internal/notify"
	"github.com/oshokin/shared-alarm/internal/service/presence"
)

// defaultPublishTimeout bounds a background push hand-off.
const defaultPublishTimeout = 5 * time.Second

// service wraps the presence engine with logging, metrics and the push hand-off.
// It is unexported to keep the transports decoupled from the implementation.
type service struct {
	// engine owns the registry and the alarm history.
	engine *presence.Engine
	// notifier delivers alarms over push channels.
	notifier notify.Notifier
	// metrics records request outcomes.
	metrics *metrics.Metrics
	// now stamps push-only alarms.
	now func() time.Time
	// publishTimeout bounds each background publish.
	publishTimeout time.Duration
	// inflight tracks background publishes so shutdown can wait for them.
	inflight sync.WaitGroup
}

// newService creates a service. A nil notifier falls back to the simulated one.
func newService(engine *presence.Engine, notifier notify.Notifier, m *metrics.Metrics) *service {
	if notifier == nil {
		notifier = notify.NewSimulated(nil)
	}

	if m == nil {
		m = metrics.New()
	}

	return &service{
		engine:         engine,
		notifier:       notifier,
		metrics:        m,
		now:            time.Now,
		publishTimeout: defaultPublishTimeout,
	}
}

// Dispatch runs one device request through the engine.
func (s *service) Dispatch(ctx context.Context, req *protocol.Request) (any, error) {
	ctx = logger.WithKV(ctx, "device_id", req.DeviceID)

	cmd, err := req.Command()
	if err != nil {
		s.reject(ctx, req.Action, err)

		return nil, err
	}

	result, err := s.engine.Handle(cmd)
	if err != nil {
		s.reject(ctx, req.Action, err)

		return nil, err
	}

	s.metrics.ObserveRequest(string(cmd.Action), metrics.OutcomeOK)

	switch {
	case result.Connect != nil:
		logger.InfoKV(ctx, "Device connected", "connections", result.Connect.ConnectionsCount)
	case result.Disconnect != nil:
		logger.InfoKV(ctx, "Device disconnected", "removed", result.Disconnect.Removed,
			"connections", result.Disconnect.ConnectionsCount)
	case result.Send != nil:
		alarm := result.Send.Alarm

		logger.InfoKV(ctx, "Alarm sent",
			"alarm_id", alarm.ID,
			"type", alarm.Type,
			"recipients", len(result.Send.Recipients),
		)

		s.metrics.ObserveAlarm(alarm.Type.String())
		s.handOff(ctx, alarm)
	default:
		logger.DebugKV(ctx, "Device request served", "action", cmd.Action)
	}

	return protocol.EncodeResult(result), nil
}

// GlobalStatus returns the dashboard view and refreshes the device gauges.
func (s *service) GlobalStatus(ctx context.Context) *protocol.GlobalStatusResponse {
	status := s.engine.GlobalStatus()
	s.metrics.SetDevices(status.TotalConnections, status.ActiveConnections)

	logger.DebugKV(ctx, "Global status requested",
		"total", status.TotalConnections,
		"active", status.ActiveConnections,
	)

	return protocol.EncodeGlobalStatus(status)
}

// Push delivers an alarm through the notifier only; it never enters the history.
func (s *service) Push(ctx context.Context, req *protocol.PushRequest, alarmType domain.Type) (*protocol.PushResponse, error) {
	event := domain.Event{
		ID:        uuid.NewString(),
		Type:      alarmType,
		Message:   req.Message,
		Timestamp: s.now(),
	}

	messageID, err := s.notifier.Publish(ctx, event)
	if err != nil {
		s.metrics.ObservePublishFailure()

		return nil, fmt.Errorf("publish push alarm: %w", err)
	}

	logger.InfoKV(ctx, "Push alarm sent", "message_id", messageID, "type", alarmType)

	return &protocol.PushResponse{
		Success:   true,
		MessageID: messageID,
		Type:      alarmType.String(),
		Timestamp: protocol.Millis(event.Timestamp),
	}, nil
}

// Subscribe adds a push token to the alarm topic.
func (s *service) Subscribe(ctx context.Context, token string) (*protocol.TopicResponse, error) {
	if err := s.notifier.Subscribe(ctx, token); err != nil {
		return nil, fmt.Errorf("subscribe token: %w", err)
	}

	return &protocol.TopicResponse{
		Success: true,
		Message: "Device subscribed to alarm notifications",
		Topic:   protocol.Topic,
	}, nil
}

// Unsubscribe removes a push token from the alarm topic.
func (s *service) Unsubscribe(ctx context.Context, token string) (*protocol.TopicResponse, error) {
	if err := s.notifier.Unsubscribe(ctx, token); err != nil {
		return nil, fmt.Errorf("unsubscribe token: %w", err)
	}

	return &protocol.TopicResponse{
		Success: true,
		Message: "Device unsubscribed from alarm notifications",
		Topic:   protocol.Topic,
	}, nil
}

// Sweep removes devices not seen within grace and refreshes the device gauges.
func (s *service) Sweep(ctx context.Context, grace time.Duration) []string {
	removed := s.engine.Sweep(grace)
	if len(removed) > 0 {
		s.metrics.ObserveSwept(len(removed))
		logger.InfoKV(ctx, "Stale devices removed", "device_ids", removed)
	}

	status := s.engine.GlobalStatus()
	s.metrics.SetDevices(status.TotalConnections, status.ActiveConnections)

	return removed
}

// Wait blocks until every background publish has finished.
func (s *service) Wait() {
	s.inflight.Wait()
}

// handOff publishes the alarm in the background. The alarm is already in the
// history, so a failure is only logged and counted.
func (s *service) handOff(ctx context.Context, event domain.Event) {
	ctx = context.WithoutCancel(ctx)

	s.inflight.Go(func() {
		publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
		defer cancel()

		messageID, err := s.notifier.Publish(publishCtx, event)
		if err != nil {
			s.metrics.ObservePublishFailure()
			logger.WarnKV(ctx, "Alarm push failed", "alarm_id", event.ID, "error", err)

			return
		}

		logger.DebugKV(ctx, "Alarm pushed", "alarm_id", event.ID, "message_id", messageID)
	})
}

// reject logs and counts a request the engine refused.
func (s *service) reject(ctx context.Context, action string, err error) {
	outcome := metrics.OutcomeRejected
	if !domain.IsClientError(err) {
		outcome = metrics.OutcomeFailed
	}

	// Unknown actions share one label to keep series bounded.
	if _, parseErr := presence.ParseAction(action); parseErr != nil {
		action = "invalid"
	}

	s.metrics.ObserveRequest(action, outcome)
	logger.WarnKV(ctx, "Device request rejected", "action", action, "error", err)
}
