package sender

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/oshokin/shared-alarm/internal/config"
	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
	"github.com/oshokin/shared-alarm/internal/logger"
	"github.com/oshokin/shared-alarm/internal/service/common"
	"github.com/oshokin/shared-alarm/internal/service/effect"
	"github.com/oshokin/shared-alarm/internal/service/poller"
	"github.com/oshokin/shared-alarm/internal/version"
)

// Options configures a one-shot alarm.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides server address from config when specified.
	ServerAddress string
	// Transport overrides the configured transport when set.
	Transport string
	// DeviceID pins the sender identity when set.
	DeviceID string
	// Type is the alarm type: sound or vibrate.
	Type string
	// Message is optional text attached to the alarm.
	Message string
	// Silent skips local playback on the sending device.
	Silent bool
}

// Run connects, fires one alarm and disconnects. Transient failures are retried
// with the configured reconnect backoff; rejected alarms fail immediately.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-sender")

	alarmType, err := domain.ParseType(opts.Type)
	if err != nil {
		return err
	}

	settings, err := config.Load(opts.ConfigPath, opts.override)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if err = logger.Setup(settings.Log.Level, settings.Log.Format); err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}

	defer logger.Sync()

	client := settings.Client

	var player effect.Player = effect.LogPlayer{}
	if !opts.Silent {
		if player, err = effect.New(client.Effect); err != nil {
			return fmt.Errorf("select effect: %w", err)
		}
	}

	transport, err := common.NewTransport(ctx, &client)
	if err != nil {
		return fmt.Errorf("dial server: %w", err)
	}

	// Close connection on function exit.
	defer func() {
		_ = transport.Close()
	}()

	p := poller.New(transport, player,
		poller.WithDeviceID(client.DeviceID),
		poller.WithDeviceInfo(common.DetectDeviceInfo(version.UserAgent("alarm-sender"))),
	)

	logger.InfoKV(ctx, "Sending alarm",
		"server_address", client.ServerAddress,
		"type", alarmType,
		"device_id", p.DeviceID(),
	)

	return send(ctx, p, alarmType, opts.Message, client.ReconnectDelay, client.ReconnectAttempts)
}

// send registers the device, fires the alarm and always tries to disconnect.
func send(
	ctx context.Context,
	p *poller.Poller,
	alarmType domain.Type,
	message string,
	delay time.Duration,
	attempts uint,
) error {
	policy := &backoff.ExponentialBackOff{
		InitialInterval:     delay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         delay << 4,
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := p.Connect(ctx); err != nil {
			return struct{}{}, permanentIfRejected(err)
		}

		return struct{}{}, nil
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(attempts), backoff.WithMaxElapsedTime(0))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	defer func() {
		if closeErr := p.Close(ctx); closeErr != nil {
			logger.WarnKV(ctx, "Disconnect failed", "error", closeErr)
		}
	}()

	alarm, err := p.Send(ctx, alarmType.String(), message)
	if err != nil {
		return fmt.Errorf("send alarm: %w", err)
	}

	logger.Infof(ctx, "Alarm %s delivered to server at %s",
		alarm.ID, time.UnixMilli(alarm.Timestamp).Format(time.RFC3339))

	return nil
}

// permanentIfRejected stops retrying on client errors.
func permanentIfRejected(err error) error {
	if domain.IsClientError(err) {
		return backoff.Permanent(err)
	}

	return err
}

// override applies the command line flags over the loaded settings.
func (opts *Options) override(cfg *config.Config) {
	if opts.ServerAddress != "" {
		cfg.Client.ServerAddress = opts.ServerAddress
	}

	if opts.Transport != "" {
		cfg.Client.Transport = opts.Transport
	}

	if opts.DeviceID != "" {
		cfg.Client.DeviceID = opts.DeviceID
	}
}
