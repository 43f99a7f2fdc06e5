package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/shared-alarm/internal/config"
	"github.com/oshokin/shared-alarm/internal/service/status"
	"github.com/oshokin/shared-alarm/internal/version"
)

var (
	// configPath to YAML settings file.
	configPath string
	// options collects the flag overrides.
	options status.Options

	// rootCmd represents the base command for reading the global status.
	rootCmd = &cobra.Command{
		Use:   "alarm-status [server-address]",
		Short: "Print the alarm server's global status.",
		Long: `Reads the global status once: registered and active devices, their metadata,
the recent alarm history and the server uptime.

Server address can be provided as argument or loaded from configuration file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if len(args) > 0 {
				options.ServerAddress = args[0]
			}

			options.ConfigPath = configPath
			options.Output = cmd.OutOrStdout()

			return status.Run(ctx, &options)
		},
	}
)

// Execute runs the alarm-status CLI and exits with non-zero status on error.
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
	flags.StringVarP(&options.Format, "output", "o", status.FormatJSON, "output format: json or yaml")
}
