package server

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/oggyb/companion/internal/api"
	"github.com/oggyb/companion/internal/app"
	"github.com/oggyb/companion/internal/config"
)

// NewGRPCServer builds a gRPC server with the logging, metrics and auth
// interceptors and registers all provided services.
func NewGRPCServer(appCtx *app.AppContext, registrars ...Registrar) *grpc.Server {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			LoggingInterceptor(appCtx.Logger),
			MetricsInterceptor(appCtx.Metrics),
			AuthInterceptor(appCtx.Auth, api.PublicMethods),
		),
		grpc.MaxRecvMsgSize(maxRecvMsgSize(appCtx.Config)),
	)

	// register all services
	for _, r := range registrars {
		r.Register(grpcServer)
	}

	// enable reflection for easier debugging with grpcurl
	reflection.Register(grpcServer)

	return grpcServer
}

// StartGRPCServer listens on GRPC_HOST:GRPC_PORT and serves until ctx is
// done, then stops gracefully.
func StartGRPCServer(ctx context.Context, cfg *config.Config, grpcServer *grpc.Server) error {
	addr := fmt.Sprintf("%s:%s", cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	go func() {
		<-ctx.Done()
		grpcServer.GracefulStop()
	}()

	return grpcServer.Serve(lis)
}

// maxRecvMsgSize leaves room for a base64-encoded upload in a JSON body.
func maxRecvMsgSize(cfg *config.Config) int {
	const floor = 4 << 20
	size := int(cfg.Storage.MaxUploadBytes) * 2
	if size < floor {
		return floor
	}
	return size
}
