package server

import "google.golang.org/grpc"

// Registrar attaches one service implementation to the shared gRPC server.
// Each service package exposes a NewRegistrar taking the AppContext.
type Registrar interface {
	Register(s *grpc.Server)
}
