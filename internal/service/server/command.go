package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mitchellh/go-ps"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpcapi "github.com/oshokin/shared-alarm/internal/api/grpc/alarm"
	httpapi "github.com/oshokin/shared-alarm/internal/api/http/alarm"
	"github.com/oshokin/shared-alarm/internal/config"
	"github.com/oshokin/shared-alarm/internal/logger"
	"github.com/oshokin/shared-alarm/internal/metrics"
	"github.com/oshokin/shared-alarm/internal/notify"
	"github.com/oshokin/shared-alarm/internal/service/presence"
)

// readHeaderTimeout bounds slow clients sending request headers.
const readHeaderTimeout = 10 * time.Second

// Options controls the alarm-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// HTTPAddress provides an optional listen address override for the HTTP API.
	HTTPAddress string
	// GRPCAddress provides an optional listen address override for the gRPC API.
	GRPCAddress string
	// StaleDeviceTTL overrides the stale-device sweep threshold when positive.
	StaleDeviceTTL time.Duration
}

// Run starts the HTTP and gRPC servers and blocks until the context is canceled
// or a server stops. Configuration is loaded first, CLI options override it.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-server")

	settings, err := config.Load(opts.ConfigPath, opts.override)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err = logger.Setup(settings.Log.Level, settings.Log.Format); err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}

	defer logger.Sync()

	serverSettings := settings.Server

	if !serverSettings.AllowMultipleInstances {
		if err = ensureSingleInstance(ps.Processes, currentExecutable(), os.Getpid()); err != nil {
			return err
		}
	}

	srv, err := New(ctx, &serverSettings)
	if err != nil {
		return fmt.Errorf("initialise server: %w", err)
	}

	if err = srv.Listen(ctx); err != nil {
		return err
	}

	return srv.Serve(ctx)
}

// override applies the command line flags over the loaded settings.
func (opts *Options) override(cfg *config.Config) {
	if opts.HTTPAddress != "" {
		cfg.Server.HTTPAddress = opts.HTTPAddress
	}

	if opts.GRPCAddress != "" {
		cfg.Server.GRPCAddress = opts.GRPCAddress
	}

	if opts.StaleDeviceTTL > 0 {
		cfg.Server.StaleDeviceTTL = opts.StaleDeviceTTL
	}
}

// Server hosts the presence engine behind the HTTP and gRPC transports.
type Server struct {
	// settings is the validated server configuration.
	settings *config.ServerConfig
	// service wraps the engine.
	service *service
	// hub streams alarms to websocket clients.
	hub *notify.Hub
	// closers are released after shutdown.
	closers []io.Closer
	// httpServer serves the JSON API.
	httpServer *http.Server
	// grpcServer serves the gRPC API; nil when disabled.
	grpcServer *grpc.Server
	// health reports gRPC serving status.
	health *health.Server
	// httpListener and grpcListener are bound by Listen.
	httpListener net.Listener
	grpcListener net.Listener
}

// New builds the engine, notifiers, metrics and both transports.
// Nothing is bound until Listen.
func New(ctx context.Context, settings *config.ServerConfig) (*Server, error) {
	engine := presence.NewEngine(
		presence.WithActivityWindow(settings.ActivityWindow),
		presence.WithHistoryCapacity(settings.HistoryCapacity),
	)

	hub := notify.NewHub()
	s := &Server{
		settings: settings,
		hub:      hub,
	}

	notifiers := notify.Multi{}

	if settings.RedisURL != "" {
		client, err := notify.NewRedisClient(ctx, settings.RedisURL)
		if err != nil {
			return nil, err
		}

		redisNotifier := notify.NewRedis(client, "")
		notifiers = append(notifiers, redisNotifier)
		s.closers = append(s.closers, redisNotifier)
	} else {
		notifiers = append(notifiers, notify.NewSimulated(nil))
	}

	notifiers = append(notifiers, hub)

	m := metrics.New()
	s.service = newService(engine, notifiers, m)

	s.httpServer = &http.Server{
		Handler: httpapi.NewRouter(s.service, &httpapi.Options{
			Stream:  hub,
			Metrics: m.Handler(),
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	if settings.GRPCAddress != config.ListenerOff {
		s.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(grpcapi.LoggingUnary()))
		grpcapi.RegisterPresenceServer(s.grpcServer, grpcapi.NewServer(s.service))

		s.health = health.NewServer()
		healthpb.RegisterHealthServer(s.grpcServer, s.health)
		s.health.SetServingStatus(grpcapi.ServiceName, healthpb.HealthCheckResponse_SERVING)
	}

	return s, nil
}

// Listen binds the configured addresses.
func (s *Server) Listen(ctx context.Context) error {
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", s.settings.HTTPAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.settings.HTTPAddress, err)
	}

	s.httpListener = lis

	if s.grpcServer == nil {
		return nil
	}

	lis, err = lc.Listen(ctx, "tcp", s.settings.GRPCAddress)
	if err != nil {
		_ = s.httpListener.Close()

		return fmt.Errorf("listen on %s: %w", s.settings.GRPCAddress, err)
	}

	s.grpcListener = lis

	return nil
}

// HTTPAddr returns the bound HTTP address.
func (s *Server) HTTPAddr() string {
	if s.httpListener == nil {
		return ""
	}

	return s.httpListener.Addr().String()
}

// GRPCAddr returns the bound gRPC address, or "" when gRPC is disabled.
func (s *Server) GRPCAddr() string {
	if s.grpcListener == nil {
		return ""
	}

	return s.grpcListener.Addr().String()
}

// Serve runs the listeners and the housekeeping loop until ctx is canceled or
// one of them fails, then shuts everything down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	logger.InfoKV(ctx, "Alarm server listening",
		"http_address", s.HTTPAddr(),
		"grpc_address", s.GRPCAddr(),
		"activity_window", s.settings.ActivityWindow.String(),
		"stale_device_ttl", s.settings.StaleDeviceTTL.String(),
	)

	group.Go(func() error {
		if err := s.httpServer.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}

		return nil
	})

	if s.grpcServer != nil {
		group.Go(func() error {
			if err := s.grpcServer.Serve(s.grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("serve gRPC: %w", err)
			}

			return nil
		})
	}

	group.Go(func() error {
		s.housekeeping(groupCtx)

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		return s.shutdown(ctx)
	})

	return group.Wait()
}

// housekeeping periodically sweeps stale devices and refreshes the device gauges.
func (s *Server) housekeeping(ctx context.Context) {
	ticker := time.NewTicker(s.settings.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.service.Sweep(ctx, s.settings.StaleDeviceTTL)
		}
	}
}

// shutdown stops the transports, waits for background publishes and releases resources.
func (s *Server) shutdown(ctx context.Context) error {
	logger.Info(ctx, "Shutting down alarm server")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settings.ShutdownTimeout)
	defer cancel()

	var errs []error

	if s.health != nil {
		s.health.Shutdown()
	}

	_ = s.hub.Close()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown HTTP: %w", err))
	}

	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}

	s.service.Wait()

	for _, closer := range s.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	logger.Info(ctx, "Alarm server stopped")

	return errors.Join(errs...)
}
