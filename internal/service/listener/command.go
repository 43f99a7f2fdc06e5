package listener

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/shared-alarm/internal/config"
	"github.com/oshokin/shared-alarm/internal/logger"
	"github.com/oshokin/shared-alarm/internal/service/common"
	"github.com/oshokin/shared-alarm/internal/service/effect"
	"github.com/oshokin/shared-alarm/internal/service/poller"
	"github.com/oshokin/shared-alarm/internal/version"
)

// Options controls the listener polling behavior and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ServerAddress provides an optional server address override.
	ServerAddress string
	// Transport overrides the configured transport when set.
	Transport string
	// DeviceID pins the device identity when set.
	DeviceID string
	// Effect overrides the configured alarm player when set.
	Effect string
	// PollInterval overrides the configured poll interval when positive.
	PollInterval time.Duration
	// SkipBacklog ignores alarms fired before the first connect.
	SkipBacklog bool
	// StatusPolling polls through getStatus instead of pollAlarms.
	StatusPolling bool
	// RememberDevice writes a generated device id to the settings file.
	RememberDevice bool
}

// Run registers this device and plays foreign alarms until the context is canceled.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-listener")

	settings, err := config.Load(opts.ConfigPath, opts.override)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if err = logger.Setup(settings.Log.Level, settings.Log.Format); err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}

	defer logger.Sync()

	client := settings.Client

	player, err := effect.New(client.Effect)
	if err != nil {
		return fmt.Errorf("select effect: %w", err)
	}

	transport, err := common.NewTransport(ctx, &client)
	if err != nil {
		return fmt.Errorf("dial server: %w", err)
	}

	// Ensure connection cleanup on function exit.
	defer func() {
		_ = transport.Close()
	}()

	p := poller.New(transport, player,
		poller.WithDeviceID(client.DeviceID),
		poller.WithDeviceInfo(common.DetectDeviceInfo(version.UserAgent("alarm-listener"))),
		poller.WithPollInterval(client.PollInterval),
		poller.WithPingInterval(client.PingInterval),
		poller.WithReconnect(client.ReconnectDelay, client.ReconnectAttempts),
		poller.WithSkipBacklog(client.SkipBacklog),
		poller.WithStatusPolling(opts.StatusPolling),
	)

	if client.DeviceID == "" && opts.RememberDevice {
		if err = config.RememberDeviceID(opts.ConfigPath, p.DeviceID()); err != nil {
			logger.WarnKV(ctx, "Failed to remember device id", "error", err)
		}
	}

	logger.InfoKV(ctx, "Listening for alarms",
		"server_address", client.ServerAddress,
		"transport", client.Transport,
		"device_id", p.DeviceID(),
		"poll_interval", client.PollInterval.String(),
		"effect", client.Effect,
	)

	return p.Run(ctx)
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

	if opts.Effect != "" {
		cfg.Client.Effect = opts.Effect
	}

	if opts.PollInterval > 0 {
		cfg.Client.PollInterval = opts.PollInterval
	}

	if opts.SkipBacklog {
		cfg.Client.SkipBacklog = true
	}
}
