package alarm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/shared-alarm/internal/api/protocol"
	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	Dispatch(ctx context.Context, req *protocol.Request) (any, error)
	GlobalStatus(ctx context.Context) *protocol.GlobalStatusResponse
}

// Server implements PresenceServer on top of a Service.
type Server struct {
	// service provides the presence operations.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// Dispatch decodes the request document, runs it and encodes the response document.
func (s *Server) Dispatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	body, err := json.Marshal(req.AsMap())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "encode request: %v", err)
	}

	request, err := protocol.DecodeRequestBytes(body)
	if err != nil {
		return nil, toStatus(err)
	}

	response, err := s.service.Dispatch(ctx, request)
	if err != nil {
		return nil, toStatus(err)
	}

	return ToStruct(response)
}

// GlobalStatus returns the dashboard view.
func (s *Server) GlobalStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return ToStruct(s.service.GlobalStatus(ctx))
}

// ToStruct converts any JSON-encodable value into a Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}

	var fields map[string]any
	if err = json.Unmarshal(encoded, &fields); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}

	result, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}

	return result, nil
}

// FromStruct decodes a Struct into the JSON-tagged value pointed to by v.
func FromStruct(s *structpb.Struct, v any) error {
	encoded, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("encode struct: %w", err)
	}

	if err = json.Unmarshal(encoded, v); err != nil {
		return fmt.Errorf("decode struct: %w", err)
	}

	return nil
}

// toStatus maps domain error kinds onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}
