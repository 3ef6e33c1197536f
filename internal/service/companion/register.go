package companion

import (
	"google.golang.org/grpc"

	"github.com/oggyb/companion/internal/api"
	"github.com/oggyb/companion/internal/app"
)

// Registrar ties the Companion service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the Companion service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Companion service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	api.RegisterCompanionServer(s, NewCompanionService(r.appCtx))
}
