package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the alarm binaries.
type Config struct {
	// Server configures alarm-server.
	Server ServerConfig `yaml:"server"`
	// Client configures alarm-listener, alarm-sender and alarm-status.
	Client ClientConfig `yaml:"client"`
	// Log configures the global logger.
	Log LogConfig `yaml:"log"`
}

// ServerConfig holds alarm-server settings.
type ServerConfig struct {
	// HTTPAddress is the listen address of the JSON API.
	HTTPAddress string `yaml:"http_addr"`
	// GRPCAddress is the listen address of the gRPC API. "off" disables it.
	GRPCAddress string `yaml:"grpc_addr"`
	// ActivityWindow decides how recently a device must have been seen to count as active.
	ActivityWindow time.Duration `yaml:"activity_window"`
	// HistoryCapacity bounds the alarm history.
	HistoryCapacity int `yaml:"history_capacity"`
	// StaleDeviceTTL removes devices not seen for this long. Zero keeps them forever.
	StaleDeviceTTL time.Duration `yaml:"stale_device_ttl"`
	// SweepInterval is how often stale devices are looked for.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// RedisURL enables the Redis push publisher when set.
	RedisURL string `yaml:"redis_url"`
	// ShutdownTimeout bounds graceful shutdown of the listeners.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// AllowMultipleInstances skips the single-instance guard.
	AllowMultipleInstances bool `yaml:"allow_multiple_instances"`
}

// ClientConfig holds device-side settings.
type ClientConfig struct {
	// ServerAddress is a base URL for the http transport or host:port for grpc.
	ServerAddress string `yaml:"server_addr"`
	// Transport is either "http" or "grpc".
	Transport string `yaml:"transport"`
	// DeviceID pins the device identity. Empty generates a fresh one per run.
	DeviceID string `yaml:"device_id"`
	// PollInterval is the delay between alarm polls.
	PollInterval time.Duration `yaml:"poll_interval"`
	// PingInterval is the delay between liveness pings.
	PingInterval time.Duration `yaml:"ping_interval"`
	// Timeout bounds every request.
	Timeout time.Duration `yaml:"timeout"`
	// ReconnectDelay is the first reconnect backoff delay; later ones double.
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	// ReconnectAttempts caps reconnect attempts per failed ping.
	ReconnectAttempts uint `yaml:"reconnect_attempts"`
	// SkipBacklog starts the watermark at connect time instead of replaying history.
	SkipBacklog bool `yaml:"skip_backlog"`
	// Effect selects the alarm player: "log" or "command".
	Effect string `yaml:"effect"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "console" or "json".
	Format string `yaml:"format"`
}

// Transports.
const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// Effects.
const (
	EffectLog     = "log"
	EffectCommand = "command"
)

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "shared-alarm-settings.yaml"
	// DefaultEnvFilename is the dotenv file consulted for overrides.
	DefaultEnvFilename = ".env"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "SHARED_ALARM_"

	// DefaultHTTPAddress is the default JSON API listen address.
	DefaultHTTPAddress = ":8080"
	// ListenerOff disables an optional listener.
	ListenerOff = "off"
	// DefaultGRPCAddress is the default gRPC listen address.
	DefaultGRPCAddress = ":50051"
	// DefaultActivityWindow is the default activity window.
	DefaultActivityWindow = 30 * time.Second
	// DefaultHistoryCapacity is the default alarm history bound.
	DefaultHistoryCapacity = 100
	// DefaultSweepInterval is the default stale-device sweep period.
	DefaultSweepInterval = time.Minute
	// DefaultShutdownTimeout is the default graceful shutdown bound.
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultServerURL is the default client target for the http transport.
	DefaultServerURL = "http://127.0.0.1:8080"
	// DefaultServerSocket is the default client target for the grpc transport.
	DefaultServerSocket = "127.0.0.1:50051"
	// DefaultPollInterval is the default alarm poll period.
	DefaultPollInterval = 3 * time.Second
	// DefaultPingInterval is the default liveness ping period.
	DefaultPingInterval = 15 * time.Second
	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second
	// DefaultReconnectDelay is the first reconnect backoff delay.
	DefaultReconnectDelay = time.Second
	// DefaultReconnectAttempts caps reconnect attempts.
	DefaultReconnectAttempts = 5

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownTransport is returned for transports other than http and grpc.
	errUnknownTransport = errors.New("transport must be http or grpc")
	// errUnknownEffect is returned for effects other than log and command.
	errUnknownEffect = errors.New("effect must be log or command")
	// errNegativeDuration is returned for durations below zero.
	errNegativeDuration = errors.New("duration must not be negative")
)

// Override adjusts loaded settings before validation, e.g. from CLI flags.
type Override func(*Config)

// Load reads configuration from the provided path, applies overrides from the
// environment, a .env file and the given overrides, in increasing precedence,
// and validates the result. A missing file at the default path yields the
// defaults; a missing explicit path is an error.
func Load(path string, overrides ...Override) (*Config, error) {
	return load(path, DefaultEnvFilename, os.LookupEnv, overrides...)
}

func load(path, envPath string, lookup func(string) (string, bool), overrides ...Override) (*Config, error) {
	explicit := path != "" && path != DefaultConfigFilename
	if path == "" {
		path = DefaultConfigFilename
	}

	cfg := new(Config)

	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// Defaults only.
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	dotenv, err := godotenv.Read(envPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", envPath, err)
	}

	if err = applyEnv(cfg, func(key string) (string, bool) {
		if value, ok := lookup(key); ok {
			return value, true
		}

		value, ok := dotenv[key]

		return value, ok
	}); err != nil {
		return nil, err
	}

	for _, override := range overrides {
		override(cfg)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// RememberDeviceID stores id as the client device identity in the settings
// file at path, creating the file when it does not exist. Environment and
// flag overrides are not written back.
func RememberDeviceID(path, id string) error {
	if path == "" {
		path = DefaultConfigFilename
	}

	cfg := new(Config)

	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, cfg); err != nil {
			return fmt.Errorf("unmarshal settings: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("read settings: %w", err)
	}

	cfg.Client.DeviceID = id

	return Save(path, cfg)
}

// Validate fills defaults and checks field formats.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := validateServer(&cfg.Server); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := validateClient(&cfg.Client); err != nil {
		return fmt.Errorf("client: %w", err)
	}

	return nil
}

//nolint:cyclop // One branch per field keeps defaults readable.
func validateServer(s *ServerConfig) error {
	if s.HTTPAddress == "" {
		s.HTTPAddress = DefaultHTTPAddress
	}

	if err := validateHostPort(s.HTTPAddress); err != nil {
		return fmt.Errorf("invalid http_addr: %w", err)
	}

	if s.GRPCAddress == "" {
		s.GRPCAddress = DefaultGRPCAddress
	}

	if s.GRPCAddress != ListenerOff {
		if err := validateHostPort(s.GRPCAddress); err != nil {
			return fmt.Errorf("invalid grpc_addr: %w", err)
		}
	}

	if s.ActivityWindow <= 0 {
		s.ActivityWindow = DefaultActivityWindow
	}

	if s.HistoryCapacity <= 0 {
		s.HistoryCapacity = DefaultHistoryCapacity
	}

	if s.StaleDeviceTTL < 0 {
		return fmt.Errorf("stale_device_ttl: %w", errNegativeDuration)
	}

	if s.SweepInterval <= 0 {
		s.SweepInterval = DefaultSweepInterval
	}

	if s.ShutdownTimeout <= 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}

	if s.RedisURL != "" {
		if _, err := url.ParseRequestURI(s.RedisURL); err != nil {
			return fmt.Errorf("invalid redis_url: %w", err)
		}
	}

	return nil
}

//nolint:cyclop // One branch per field keeps defaults readable.
func validateClient(c *ClientConfig) error {
	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	if c.Transport == "" {
		c.Transport = TransportHTTP
	}

	switch c.Transport {
	case TransportHTTP:
		if c.ServerAddress == "" {
			c.ServerAddress = DefaultServerURL
		}

		if !strings.Contains(c.ServerAddress, "://") {
			c.ServerAddress = "http://" + c.ServerAddress
		}

		if _, err := url.ParseRequestURI(c.ServerAddress); err != nil {
			return fmt.Errorf("invalid server_addr: %w", err)
		}
	case TransportGRPC:
		if c.ServerAddress == "" {
			c.ServerAddress = DefaultServerSocket
		}

		if err := validateHostPort(c.ServerAddress); err != nil {
			return fmt.Errorf("invalid server_addr: %w", err)
		}
	default:
		return fmt.Errorf("%q: %w", c.Transport, errUnknownTransport)
	}

	c.Effect = strings.ToLower(strings.TrimSpace(c.Effect))
	if c.Effect == "" {
		c.Effect = EffectLog
	}

	if c.Effect != EffectLog && c.Effect != EffectCommand {
		return fmt.Errorf("%q: %w", c.Effect, errUnknownEffect)
	}

	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}

	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}

	// Set default timeout if not specified
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}

	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}

	if c.ReconnectAttempts == 0 {
		c.ReconnectAttempts = DefaultReconnectAttempts
	}

	return nil
}

// validateHostPort accepts "host:port" and ":port" with a numeric port.
func validateHostPort(address string) error {
	_, port, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}

	if _, err = strconv.ParseUint(port, 10, 16); err != nil {
		return fmt.Errorf("port %q: %w", port, err)
	}

	return nil
}

// applyEnv overrides fields from SHARED_ALARM_* variables.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	stringFields := map[string]*string{
		"HTTP_ADDR":   &cfg.Server.HTTPAddress,
		"GRPC_ADDR":   &cfg.Server.GRPCAddress,
		"REDIS_URL":   &cfg.Server.RedisURL,
		"SERVER_ADDR": &cfg.Client.ServerAddress,
		"TRANSPORT":   &cfg.Client.Transport,
		"DEVICE_ID":   &cfg.Client.DeviceID,
		"EFFECT":      &cfg.Client.Effect,
		"LOG_LEVEL":   &cfg.Log.Level,
		"LOG_FORMAT":  &cfg.Log.Format,
	}

	for name, field := range stringFields {
		if value, ok := lookup(EnvPrefix + name); ok {
			*field = value
		}
	}

	durationFields := map[string]*time.Duration{
		"ACTIVITY_WINDOW":  &cfg.Server.ActivityWindow,
		"STALE_DEVICE_TTL": &cfg.Server.StaleDeviceTTL,
		"POLL_INTERVAL":    &cfg.Client.PollInterval,
		"PING_INTERVAL":    &cfg.Client.PingInterval,
		"TIMEOUT":          &cfg.Client.Timeout,
	}

	for name, field := range durationFields {
		value, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}

		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("parse %s%s: %w", EnvPrefix, name, err)
		}

		*field = parsed
	}

	return nil
}
