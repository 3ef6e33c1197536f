package server

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/oggyb/companion/internal/auth"
	svcErr "github.com/oggyb/companion/internal/errors"
	"github.com/oggyb/companion/internal/metrics"
)

// AuthInterceptor verifies the "authorization: Bearer <token>" metadata and
// stores the identity on ctx. Methods in public skip the check.
func AuthInterceptor(v auth.Verifier, public map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if public[info.FullMethod] {
			return handler(ctx, req)
		}

		token := bearerToken(ctx)
		if token == "" {
			return nil, svcErr.Unauthenticated("missing bearer token")
		}
		id, err := v.Verify(ctx, token)
		if err != nil {
			return nil, svcErr.Unauthenticated("invalid or expired token")
		}

		ctx = auth.WithIdentity(ctx, id)
		ctx = auth.WithToken(ctx, token)
		return handler(ctx, req)
	}
}

func bearerToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get("authorization") {
		if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
			return strings.TrimSpace(v[7:])
		}
	}
	return ""
}

// LoggingInterceptor logs every call at debug and failures at warn/error.
func LoggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic in handler", "method", info.FullMethod, "panic", r, "stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal error")
			}

			code := status.Code(err)
			attrs := []any{"method", info.FullMethod, "code", code.String(), "duration", time.Since(start)}
			switch code {
			case codes.OK:
				log.Debug("rpc finished", attrs...)
			case codes.Internal, codes.Unknown, codes.DataLoss:
				log.Error("rpc failed", append(attrs, "err", err)...)
			default:
				log.Warn("rpc rejected", append(attrs, "err", err)...)
			}
		}()
		return handler(ctx, req)
	}
}

// MetricsInterceptor records request counts and latency per method.
func MetricsInterceptor(m *metrics.Collector) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		m.RPCDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		m.RPCRequests.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		return resp, err
	}
}
