//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/shared-alarm/internal/api/protocol"
	"github.com/oshokin/shared-alarm/internal/config"
)

// Transport carries device requests to the alarm server.
type Transport interface {
	// Do runs one action of the multiplexed presence operation.
	Do(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
	// GlobalStatus reads the dashboard view.
	GlobalStatus(ctx context.Context) (*protocol.GlobalStatusResponse, error)
	// Close releases the underlying connection.
	Close() error
}

// Option configures client behaviour.
type Option func(*options)

// options holds settings shared by every transport.
type options struct {
	// callTimeout is the default timeout for individual calls.
	callTimeout time.Duration
}

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.callTimeout = timeout
		}
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errRequestRequired is returned when a nil request is passed to Do.
	errRequestRequired = errors.New("request must be provided")
	// errUnsupportedTransport is returned for unknown transport names.
	errUnsupportedTransport = errors.New("unsupported transport")

	// ErrServerFailure indicates the server could not process a valid request.
	ErrServerFailure = errors.New("server failure")
)

// NewTransport builds the transport selected by the client settings.
func NewTransport(ctx context.Context, settings *config.ClientConfig) (Transport, error) {
	switch settings.Transport {
	case config.TransportHTTP:
		return NewHTTPClient(settings.ServerAddress, WithCallTimeout(settings.Timeout))
	case config.TransportGRPC:
		return Dial(ctx, settings.ServerAddress, WithCallTimeout(settings.Timeout))
	default:
		return nil, fmt.Errorf("%q: %w", settings.Transport, errUnsupportedTransport)
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (o *options) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, o.callTimeout)
}
