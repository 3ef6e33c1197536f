package gateway

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/oggyb/companion/internal/api"
)

// Accounts is the auth surface the session context drives.
// Tokens are passed explicitly because the session owns them.
type Accounts interface {
	SignIn(ctx context.Context, email, password string) (api.Session, error)
	SignUp(ctx context.Context, email, password, fullName string) (api.Session, error)
	Refresh(ctx context.Context, refreshToken string) (api.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	WhoAmI(ctx context.Context, accessToken string) (api.User, error)
}

// RemoteAccounts implements Accounts against AccountService.
type RemoteAccounts struct {
	client *api.AccountClient
}

func NewRemoteAccounts(cc grpc.ClientConnInterface) *RemoteAccounts {
	return &RemoteAccounts{client: api.NewAccountClient(cc)}
}

func (a *RemoteAccounts) SignIn(ctx context.Context, email, password string) (api.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return api.Session{}, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	resp, err := a.client.SignIn(ctx, &api.SignInRequest{Email: email, Password: password})
	if err != nil {
		return api.Session{}, FromStatus(err)
	}
	return *resp, nil
}

func (a *RemoteAccounts) SignUp(ctx context.Context, email, password, fullName string) (api.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return api.Session{}, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	resp, err := a.client.SignUp(ctx, &api.SignUpRequest{Email: email, Password: password, FullName: strings.TrimSpace(fullName)})
	if err != nil {
		return api.Session{}, FromStatus(err)
	}
	return *resp, nil
}

func (a *RemoteAccounts) Refresh(ctx context.Context, refreshToken string) (api.Session, error) {
	if refreshToken == "" {
		return api.Session{}, ErrAuthRequired
	}
	resp, err := a.client.Refresh(ctx, &api.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return api.Session{}, FromStatus(err)
	}
	return *resp, nil
}

func (a *RemoteAccounts) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return ErrAuthRequired
	}
	_, err := a.client.SignOut(withBearer(ctx, accessToken), &api.Empty{})
	return FromStatus(err)
}

func (a *RemoteAccounts) WhoAmI(ctx context.Context, accessToken string) (api.User, error) {
	if accessToken == "" {
		return api.User{}, ErrAuthRequired
	}
	resp, err := a.client.WhoAmI(withBearer(ctx, accessToken), &api.Empty{})
	if err != nil {
		return api.User{}, FromStatus(err)
	}
	return *resp, nil
}

func withBearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}
