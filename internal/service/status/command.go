package status

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/shared-alarm/internal/api/protocol"
	"github.com/oshokin/shared-alarm/internal/config"
	"github.com/oshokin/shared-alarm/internal/logger"
	"github.com/oshokin/shared-alarm/internal/service/common"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// errUnknownFormat is returned for output formats other than json and yaml.
var errUnknownFormat = errors.New("output format must be json or yaml")

// Options configures the status read.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides server address from config when specified.
	ServerAddress string
	// Transport overrides the configured transport when set.
	Transport string
	// Format is json or yaml.
	Format string
	// Output receives the rendered status; stdout when nil.
	Output io.Writer
}

// Run reads the global status once and renders it.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-status")

	settings, err := config.Load(opts.ConfigPath, opts.override)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if err = logger.Setup(settings.Log.Level, settings.Log.Format); err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}

	defer logger.Sync()

	transport, err := common.NewTransport(ctx, &settings.Client)
	if err != nil {
		return fmt.Errorf("dial server: %w", err)
	}

	defer func() {
		_ = transport.Close()
	}()

	logger.DebugKV(ctx, "Reading global status", "server_address", settings.Client.ServerAddress)

	status, err := transport.GlobalStatus(ctx)
	if err != nil {
		return err
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	return Render(out, status, opts.Format)
}

// Render writes status in the requested format with the wire field names.
func Render(w io.Writer, status *protocol.GlobalStatusResponse, format string) error {
	switch format {
	case FormatJSON, "":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		return encoder.Encode(status)
	case FormatYAML:
		// Round-trip through JSON so YAML keys match the wire names.
		encoded, err := json.Marshal(status)
		if err != nil {
			return fmt.Errorf("encode status: %w", err)
		}

		decoder := json.NewDecoder(bytes.NewReader(encoded))
		decoder.UseNumber()

		var document map[string]any
		if err = decoder.Decode(&document); err != nil {
			return fmt.Errorf("encode status: %w", err)
		}

		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)

		if err = encoder.Encode(plainNumbers(document)); err != nil {
			return fmt.Errorf("encode status: %w", err)
		}

		return encoder.Close()
	default:
		return fmt.Errorf("%q: %w", format, errUnknownFormat)
	}
}

// plainNumbers replaces JSON numbers with int64 or float64 so millisecond
// timestamps are not rendered in exponent form.
func plainNumbers(value any) any {
	switch v := value.(type) {
	case map[string]any:
		for key, item := range v {
			v[key] = plainNumbers(item)
		}

		return v
	case []any:
		for i, item := range v {
			v[i] = plainNumbers(item)
		}

		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}

		if f, err := v.Float64(); err == nil {
			return f
		}

		return v.String()
	default:
		return v
	}
}

// override applies the command line flags over the loaded settings.
func (opts *Options) override(cfg *config.Config) {
	if opts.ServerAddress != "" {
		cfg.Client.ServerAddress = opts.ServerAddress
	}

	if opts.Transport != "" {
		cfg.Client.Transport = opts.Transport
	}
}
