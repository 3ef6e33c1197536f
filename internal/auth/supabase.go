package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/supabase-go"
)

// ErrConfirmationRequired is returned by SignUp when the hosted project
// requires email confirmation before a session is issued.
var ErrConfirmationRequired = errors.New("check your email to confirm the account")

// SupabaseProvider delegates to the hosted auth service.
type SupabaseProvider struct {
	auth gotrue.Client
}

// NewSupabaseProvider builds a provider from the project URL and anon key.
func NewSupabaseProvider(url, anonKey string) (*SupabaseProvider, error) {
	client, err := supabase.NewClient(url, anonKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("init supabase client: %w", err)
	}
	return &SupabaseProvider{auth: client.Auth}, nil
}

// NewSupabaseProviderWithClient is used when the caller already holds a gotrue client.
func NewSupabaseProviderWithClient(c gotrue.Client) *SupabaseProvider {
	return &SupabaseProvider{auth: c}
}

// Verify asks the auth service who owns the token.
func (p *SupabaseProvider) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	resp, err := p.auth.WithToken(token).GetUser()
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return supabaseIdentity(resp.User), nil
}

// SignIn reports every upstream failure as invalid credentials; the client
// gives no way to tell a wrong password from other 4xx answers.
func (p *SupabaseProvider) SignIn(_ context.Context, email, password string) (Session, error) {
	resp, err := p.auth.SignInWithEmailPassword(email, password)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return supabaseSession(resp.Session), nil
}

func (p *SupabaseProvider) SignUp(_ context.Context, email, password, fullName string) (Session, error) {
	req := types.SignupRequest{Email: email, Password: password}
	if fullName != "" {
		req.Data = map[string]interface{}{"full_name": fullName}
	}
	resp, err := p.auth.Signup(req)
	if err != nil {
		return Session{}, fmt.Errorf("supabase signup: %w", err)
	}
	if resp.Session.AccessToken == "" {
		return Session{}, ErrConfirmationRequired
	}
	return supabaseSession(resp.Session), nil
}

func (p *SupabaseProvider) Refresh(_ context.Context, refreshToken string) (Session, error) {
	resp, err := p.auth.RefreshToken(refreshToken)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return supabaseSession(resp.Session), nil
}

func (p *SupabaseProvider) SignOut(_ context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	return p.auth.WithToken(accessToken).Logout()
}

func supabaseSession(s types.Session) Session {
	return Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    time.Unix(s.ExpiresAt, 0).UTC(),
		Identity:     supabaseIdentity(s.User),
	}
}

func supabaseIdentity(u types.User) Identity {
	id := Identity{UserID: u.ID.String(), Email: u.Email}
	if name, ok := u.UserMetadata["full_name"].(string); ok {
		id.FullName = name
	}
	return id
}
