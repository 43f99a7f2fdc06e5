package alarm

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/oshokin/shared-alarm/internal/logger"
)

// LoggingUnary returns a unary server interceptor that logs every call with its outcome.
func LoggingUnary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		started := time.Now()
		ctx = logger.WithKV(ctx, "method", info.FullMethod)

		resp, err := handler(ctx, req)

		code := status.Code(err)
		if err != nil {
			logger.WarnKV(ctx, "gRPC call failed", "code", code.String(), "duration", time.Since(started), "error", err)

			return resp, err
		}

		logger.DebugKV(ctx, "gRPC call served", "code", code.String(), "duration", time.Since(started))

		return resp, nil
	}
}
