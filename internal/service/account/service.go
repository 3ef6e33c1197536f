package account

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oggyb/companion/internal/api"
	"github.com/oggyb/companion/internal/app"
	"github.com/oggyb/companion/internal/auth"
	svcErr "github.com/oggyb/companion/internal/errors"
	"github.com/oggyb/companion/internal/validation"
)

// Service implements the Account gRPC API on top of the configured auth.Provider.
type Service struct {
	appCtx *app.AppContext
}

func NewAccountService(appCtx *app.AppContext) *Service {
	return &Service{appCtx: appCtx}
}

// Registrar ties the Account service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

func (r *Registrar) Register(s *grpc.Server) {
	api.RegisterAccountServer(s, NewAccountService(r.appCtx))
}

func (s *Service) SignIn(ctx context.Context, req *api.SignInRequest) (*api.Session, error) {
	s.appCtx.Logger.Debug("SignIn called", "email", req.Email)
	if err := validation.ValidateStruct(req); err != nil {
		return nil, svcErr.Map(err)
	}
	sess, err := s.appCtx.Auth.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return nil, mapAuthErr(err)
	}
	return toAPISession(sess), nil
}

func (s *Service) SignUp(ctx context.Context, req *api.SignUpRequest) (*api.Session, error) {
	s.appCtx.Logger.Debug("SignUp called", "email", req.Email)
	if err := validation.ValidateStruct(req); err != nil {
		return nil, svcErr.Map(err)
	}
	sess, err := s.appCtx.Auth.SignUp(ctx, req.Email, req.Password, req.FullName)
	if err != nil {
		return nil, mapAuthErr(err)
	}
	s.appCtx.Logger.Info("account created", "user", sess.Identity.UserID)
	return toAPISession(sess), nil
}

func (s *Service) Refresh(ctx context.Context, req *api.RefreshRequest) (*api.Session, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, svcErr.Map(err)
	}
	sess, err := s.appCtx.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, mapAuthErr(err)
	}
	return toAPISession(sess), nil
}

func (s *Service) SignOut(ctx context.Context, _ *api.Empty) (*api.Empty, error) {
	if err := s.appCtx.Auth.SignOut(ctx, auth.TokenFromContext(ctx)); err != nil {
		s.appCtx.Logger.Warn("sign out failed", "err", err)
		return nil, mapAuthErr(err)
	}
	return &api.Empty{}, nil
}

// WhoAmI echoes the verified identity of the caller.
func (s *Service) WhoAmI(ctx context.Context, _ *api.Empty) (*api.User, error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return nil, svcErr.Map(svcErr.ErrUnauthenticated)
	}
	return &api.User{ID: id.UserID, Email: id.Email, FullName: id.FullName}, nil
}

func mapAuthErr(err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, auth.ErrInvalidCredentials.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, auth.ErrInvalidToken.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, auth.ErrConfirmationRequired):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return svcErr.Map(err)
	}
}

func toAPISession(s auth.Session) *api.Session {
	return &api.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
		User: api.User{
			ID:       s.Identity.UserID,
			Email:    s.Identity.Email,
			FullName: s.Identity.FullName,
		},
	}
}
