package session_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/companion/internal/api"
	"github.com/oggyb/companion/internal/gateway"
	"github.com/oggyb/companion/internal/session"
)

type fakeAccounts struct {
	mu         sync.Mutex
	refreshErr error
	whoErr     error
	signOuts   int
}

func (f *fakeAccounts) session(id string) api.Session {
	return api.Session{
		AccessToken:  "access-" + id,
		RefreshToken: "refresh-" + id,
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		User:         api.User{ID: id, Email: id + "@example.com", FullName: "User " + id},
	}
}

func (f *fakeAccounts) SignIn(_ context.Context, email, password string) (api.Session, error) {
	if password != "secret" {
		return api.Session{}, gateway.ErrAuthRequired
	}
	return f.session("u1"), nil
}

func (f *fakeAccounts) SignUp(_ context.Context, _, _, _ string) (api.Session, error) {
	return f.session("u2"), nil
}

func (f *fakeAccounts) Refresh(_ context.Context, refreshToken string) (api.Session, error) {
	if f.refreshErr != nil {
		return api.Session{}, f.refreshErr
	}
	s := f.session("u1")
	s.AccessToken = "access-refreshed"
	return s, nil
}

func (f *fakeAccounts) SignOut(context.Context, string) error {
	f.mu.Lock()
	f.signOuts++
	f.mu.Unlock()
	return errors.New("network down")
}

func (f *fakeAccounts) WhoAmI(_ context.Context, token string) (api.User, error) {
	if f.whoErr != nil {
		return api.User{}, f.whoErr
	}
	return api.User{ID: "u1", Email: "new@example.com"}, nil
}

type fakeProvisioner struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *fakeProvisioner) EnsureProfile(context.Context, string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err == nil, p.err
}

func (p *fakeProvisioner) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSignInPublishesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := session.New(&fakeAccounts{}, path, discard())
	events, cancel := s.Subscribe()
	defer cancel()

	assert.Empty(t, s.AccessToken())

	_, err := s.SignIn(context.Background(), "u1@example.com", "wrong")
	assert.ErrorIs(t, err, gateway.ErrAuthRequired)

	id, err := s.SignIn(context.Background(), "u1@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, "access-u1", s.AccessToken())

	ev := <-events
	assert.Equal(t, session.EventSignedIn, ev.Kind)
	require.NotNil(t, ev.Identity)
	assert.Equal(t, "u1", ev.Identity.UserID)

	// a second Context restores from the file
	restored := session.New(&fakeAccounts{}, path, discard())
	require.NoError(t, restored.Load(context.Background()))
	got, ok := restored.Identity()
	require.True(t, ok)
	assert.Equal(t, "u1", got.UserID)
	assert.False(t, restored.Loading())
}

func TestSignOutClearsEvenWhenRemoteFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	accounts := &fakeAccounts{}
	s := session.New(accounts, path, discard())

	_, err := s.SignIn(context.Background(), "u1@example.com", "secret")
	require.NoError(t, err)

	events, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.SignOut(context.Background()))
	assert.Equal(t, 1, accounts.signOuts)
	_, ok := s.Identity()
	assert.False(t, ok)

	ev := <-events
	assert.Equal(t, session.EventSignedOut, ev.Kind)
	assert.Nil(t, ev.Identity)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRefreshFallsBackToWhoAmI(t *testing.T) {
	accounts := &fakeAccounts{refreshErr: gateway.ErrUnavailable}
	s := session.New(accounts, "", discard())

	_, err := s.SignIn(context.Background(), "u1@example.com", "secret")
	require.NoError(t, err)

	require.NoError(t, s.Refresh(context.Background()))
	id, ok := s.Identity()
	require.True(t, ok)
	assert.Equal(t, "new@example.com", id.Email)
	assert.Equal(t, "access-u1", s.AccessToken(), "token kept when only the user was re-read")

	accounts.whoErr = gateway.ErrAuthRequired
	assert.ErrorIs(t, s.Refresh(context.Background()), gateway.ErrAuthRequired)
	_, ok = s.Identity()
	assert.False(t, ok)
}

func TestRefreshReplacesToken(t *testing.T) {
	s := session.New(&fakeAccounts{}, "", discard())
	assert.ErrorIs(t, s.Refresh(context.Background()), gateway.ErrAuthRequired)

	_, err := s.SignIn(context.Background(), "u1@example.com", "secret")
	require.NoError(t, err)
	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, "access-refreshed", s.AccessToken())
}

func TestProvisionOncePerIdentity(t *testing.T) {
	p := &fakeProvisioner{}
	s := session.New(&fakeAccounts{}, "", discard())
	s.SetProvisioner(p)

	for range 3 {
		_, err := s.SignIn(context.Background(), "u1@example.com", "secret")
		require.NoError(t, err)
		s.Wait()
	}
	assert.Equal(t, 1, p.count())

	_, err := s.SignUp(context.Background(), "u2@example.com", "secret", "")
	require.NoError(t, err)
	s.Wait()
	assert.Equal(t, 2, p.count())
}

func TestProvisionFailureIsToleratedAndRetried(t *testing.T) {
	p := &fakeProvisioner{err: gateway.ErrUnavailable}
	s := session.New(&fakeAccounts{}, "", discard())
	s.SetProvisioner(p)

	_, err := s.SignIn(context.Background(), "u1@example.com", "secret")
	require.NoError(t, err, "provisioning never fails sign-in")
	s.Wait()

	_, err = s.SignIn(context.Background(), "u1@example.com", "secret")
	require.NoError(t, err)
	s.Wait()
	assert.Equal(t, 2, p.count())
}

func TestLoadExpiredSessionRefreshes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"access_token":"old","refresh_token":"r","expires_at":1,"user":{"id":"u1","email":"u1@example.com"}}`), 0o600))

	s := session.New(&fakeAccounts{}, path, discard())
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, "access-refreshed", s.AccessToken())
}

func TestLoadIgnoresGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	s := session.New(&fakeAccounts{}, path, discard())
	require.NoError(t, s.Load(context.Background()))
	_, ok := s.Identity()
	assert.False(t, ok)
}
