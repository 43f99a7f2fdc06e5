package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/shared-alarm/internal/config"
	"github.com/oshokin/shared-alarm/internal/service/sender"
	"github.com/oshokin/shared-alarm/internal/version"
)

var (
	// configPath to YAML settings file.
	configPath string
	// options collects the flag overrides.
	options sender.Options

	// rootCmd represents the base command for firing an alarm.
	rootCmd = &cobra.Command{
		Use:   "alarm-sender <sound|vibrate> [message]",
		Short: "Fire a shared alarm from this device.",
		Long: `Connects to the alarm server, fires one alarm and disconnects.

Every other connected device plays the alarm on its next poll.
The alarm is also played locally right away unless --silent is set.
Connection failures are retried with exponential backoff.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options.ConfigPath = configPath
			options.Type = args[0]

			if len(args) > 1 {
				options.Message = args[1]
			}

			return sender.Run(ctx, &options)
		},
	}
)

// Execute runs the alarm-sender CLI and exits with non-zero status on error.
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
	flags.StringVarP(&options.ServerAddress, "server", "s", "", "server address (URL for http, host:port for grpc)")
	flags.StringVarP(&options.Transport, "transport", "t", "", "transport to the server: http or grpc")
	flags.StringVar(&options.DeviceID, "device-id", "", "fixed device identifier (generated when empty)")
	flags.BoolVar(&options.Silent, "silent", false, "do not play the alarm locally")
}
