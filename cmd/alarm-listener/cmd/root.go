package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/shared-alarm/internal/config"
	"github.com/oshokin/shared-alarm/internal/service/listener"
	"github.com/oshokin/shared-alarm/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// options collects the flag overrides.
	options listener.Options
	// pollInterval overrides the configured poll interval.
	pollInterval time.Duration

	// rootCmd represents the base command for listening to alarms.
	rootCmd = &cobra.Command{
		Use:   "alarm-listener [server-address]",
		Short: "Play alarms fired by other devices.",
		Long: `Long-running device client that registers with the alarm server and plays
every alarm fired by another device exactly once.

Polls the server every 3 seconds by default and pings it every 15 seconds.
When a ping fails the listener reconnects with exponential backoff.
Server address can be provided as argument or loaded from configuration file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use server address argument if provided, otherwise rely on config.
			if len(args) > 0 {
				options.ServerAddress = args[0]
			}

			options.ConfigPath = configPath
			options.PollInterval = pollInterval

			return listener.Run(ctx, &options)
		},
	}
)

// Execute runs the alarm-listener CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&options.Transport, "transport", "t", "", "transport to the server: http or grpc")
	flags.StringVar(&options.DeviceID, "device-id", "", "fixed device identifier (generated when empty)")
	flags.StringVarP(&options.Effect, "effect", "e", "", "alarm player: log or command")
	flags.DurationVar(&pollInterval, "poll-interval", 0, "delay between alarm polls")
	flags.BoolVar(&options.SkipBacklog, "skip-backlog", false, "ignore alarms fired before the first connect")
	flags.BoolVar(&options.RememberDevice, "remember-device", false, "save a generated device identifier to the configuration file")

	// Hidden compatibility flag for servers without pollAlarms.
	flags.BoolVar(&options.StatusPolling, "status-polling", false, "poll through getStatus")

	err := flags.MarkHidden("status-polling")
	if err != nil {
		panic(err)
	}
}
