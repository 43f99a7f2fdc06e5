package alarm

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "sharedalarm.v1.PresenceService"
	// DispatchMethod is the full name of the multiplexed device operation.
	DispatchMethod = "/" + ServiceName + "/Dispatch"
	// GlobalStatusMethod is the full name of the dashboard read.
	GlobalStatusMethod = "/" + ServiceName + "/GlobalStatus"
)

// PresenceServer is the server API of the presence service.
type PresenceServer interface {
	Dispatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GlobalStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// ServiceDesc describes the presence service for grpc.ServiceRegistrar.
//
//nolint:gochecknoglobals // Service descriptors are package-level by gRPC convention.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PresenceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Dispatch",
			Handler:    dispatchHandler,
		},
		{
			MethodName: "GlobalStatus",
			Handler:    globalStatusHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sharedalarm/v1/presence.proto",
}

// RegisterPresenceServer registers srv on the registrar.
func RegisterPresenceServer(registrar grpc.ServiceRegistrar, srv PresenceServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

func dispatchHandler(
	srv any,
	ctx context.Context, //nolint:revive // Signature is fixed by grpc.MethodHandler.
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(PresenceServer).Dispatch(ctx, in) //nolint:forcetypeassert // Guaranteed by HandlerType.
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: DispatchMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PresenceServer).Dispatch(ctx, req.(*structpb.Struct)) //nolint:forcetypeassert // Guaranteed by HandlerType.
	}

	return interceptor(ctx, in, info, handler)
}

func globalStatusHandler(
	srv any,
	ctx context.Context, //nolint:revive // Signature is fixed by grpc.MethodHandler.
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(PresenceServer).GlobalStatus(ctx, in) //nolint:forcetypeassert // Guaranteed by HandlerType.
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GlobalStatusMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PresenceServer).GlobalStatus(ctx, req.(*emptypb.Empty)) //nolint:forcetypeassert // Guaranteed by HandlerType.
	}

	return interceptor(ctx, in, info, handler)
}

// PresenceClient is the client API of the presence service.
type PresenceClient struct {
	// cc carries the calls.
	cc grpc.ClientConnInterface
}

// NewPresenceClient wraps a client connection.
func NewPresenceClient(cc grpc.ClientConnInterface) *PresenceClient {
	return &PresenceClient{cc: cc}
}

// Dispatch invokes the multiplexed device operation.
func (c *PresenceClient) Dispatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, DispatchMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// GlobalStatus invokes the dashboard read.
func (c *PresenceClient) GlobalStatus(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GlobalStatusMethod, new(emptypb.Empty), out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
