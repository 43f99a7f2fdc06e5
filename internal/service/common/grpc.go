//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	grpcapi "github.com/oshokin/shared-alarm/internal/api/grpc/alarm"
	"github.com/oshokin/shared-alarm/internal/api/protocol"
	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
)

// GRPCClient wraps the presence gRPC client with call timeouts.
type GRPCClient struct {
	// conn is the underlying gRPC connection to the alarm server.
	conn *grpc.ClientConn
	// api is the presence service client.
	api *grpcapi.PresenceClient
	// options holds the call timeout.
	options *options
}

// Dial establishes a gRPC connection to the alarm server.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*GRPCClient, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	// Use the non-context NewClient API recommended by grpc-go
	// (DialContext is deprecated as of grpc-go v1.60+).
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial alarm server: %w", err)
	}

	return NewGRPCClient(conn, opts...), nil
}

// NewGRPCClient wraps an existing connection. The client owns conn afterwards.
func NewGRPCClient(conn *grpc.ClientConn, opts ...Option) *GRPCClient {
	return &GRPCClient{
		conn:    conn,
		api:     grpcapi.NewPresenceClient(conn),
		options: newOptions(opts),
	}
}

// Close releases the underlying gRPC connection.
func (c *GRPCClient) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Do runs one presence action.
func (c *GRPCClient) Do(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if req == nil {
		return nil, errRequestRequired
	}

	in, err := grpcapi.ToStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", req.Action, err)
	}

	callCtx, cancel := c.options.callContext(ctx)
	defer cancel()

	out, err := c.api.Dispatch(callCtx, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Action, fromStatus(err))
	}

	response := new(protocol.Response)
	if err = grpcapi.FromStruct(out, response); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", req.Action, err)
	}

	return response, nil
}

// GlobalStatus reads the dashboard view.
func (c *GRPCClient) GlobalStatus(ctx context.Context) (*protocol.GlobalStatusResponse, error) {
	callCtx, cancel := c.options.callContext(ctx)
	defer cancel()

	out, err := c.api.GlobalStatus(callCtx)
	if err != nil {
		return nil, fmt.Errorf("global status: %w", fromStatus(err))
	}

	response := new(protocol.GlobalStatusResponse)
	if err = grpcapi.FromStruct(out, response); err != nil {
		return nil, fmt.Errorf("decode global status: %w", err)
	}

	return response, nil
}

// fromStatus maps gRPC codes back onto domain error kinds.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.InvalidArgument:
		return fmt.Errorf("%s: %w", st.Message(), domain.ErrInvalidRequest)
	case codes.Internal:
		return fmt.Errorf("%s: %w", st.Message(), ErrServerFailure)
	default:
		return err
	}
}
