package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/shared-alarm/internal/config"
	"github.com/oshokin/shared-alarm/internal/service/server"
	"github.com/oshokin/shared-alarm/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// grpcAddress overrides the gRPC listen address; "off" disables gRPC.
	grpcAddress string
	// staleDeviceTTL enables the stale-device sweeper when positive.
	staleDeviceTTL time.Duration

	// rootCmd represents the base command for running the alarm server.
	rootCmd = &cobra.Command{
		Use:   "alarm-server [http-listen-address]",
		Short: "Run the shared alarm server.",
		Long: `Starts the shared alarm server that tracks connected devices and keeps the alarm history.

Devices connect, ping, send alarms and poll for new ones through a single
multiplexed action, served as JSON over HTTP (POST /api/presence) and over gRPC.
GET /api/presence returns the global status; /metrics exposes Prometheus metrics.
The HTTP listen address can be provided as argument to override config (e.g., :9090).
All state lives in memory and is lost on restart.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var httpAddress string
			if len(args) > 0 {
				httpAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:     configPath,
				HTTPAddress:    httpAddress,
				GRPCAddress:    grpcAddress,
				StaleDeviceTTL: staleDeviceTTL,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the alarm-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&grpcAddress, "grpc", "g", "", `gRPC listen address, or "off" to disable gRPC`)
	rootCmd.Flags().DurationVar(&staleDeviceTTL, "stale-device-ttl", 0, "remove devices not seen for this long (0 keeps them)")
}
