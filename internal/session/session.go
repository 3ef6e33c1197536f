// Package session holds the signed-in identity for the client flows.
// A *Context is created once and passed to every flow that needs it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oggyb/companion/internal/api"
	"github.com/oggyb/companion/internal/gateway"
)

const provisionTimeout = 10 * time.Second

// EventKind names an auth-state change.
type EventKind string

const (
	EventRestored  EventKind = "restored"
	EventSignedIn  EventKind = "signed_in"
	EventRefreshed EventKind = "refreshed"
	EventSignedOut EventKind = "signed_out"
)

// Identity is the signed-in user.
type Identity struct {
	UserID   string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// Event is delivered to subscribers on every auth-state change.
// Identity is nil after sign-out.
type Event struct {
	Kind     EventKind
	Identity *Identity
}

// Provisioner creates the per-user rows on first sight of an identity.
type Provisioner interface {
	EnsureProfile(ctx context.Context, displayNameHint string) (bool, error)
}

// stored is the on-disk session.
type stored struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresAt    int64    `json:"expires_at"`
	User         Identity `json:"user"`
}

// Context tracks the current session and fans out changes to subscribers.
type Context struct {
	accounts gateway.Accounts
	path     string
	log      *slog.Logger
	now      func() time.Time

	mu          sync.RWMutex
	current     *stored
	loading     bool
	provisioner Provisioner
	seen        map[string]bool
	subs        map[int]chan Event
	nextSub     int

	bg sync.WaitGroup
}

// New creates an empty, signed-out Context. path may be empty to disable persistence.
func New(accounts gateway.Accounts, path string, log *slog.Logger) *Context {
	return &Context{
		accounts: accounts,
		path:     path,
		log:      log,
		now:      time.Now,
		seen:     make(map[string]bool),
		subs:     make(map[int]chan Event),
	}
}

// SetProvisioner installs the profile provisioner. The gateway needs the
// Context as its token source, so this is wired after construction.
func (c *Context) SetProvisioner(p Provisioner) {
	c.mu.Lock()
	c.provisioner = p
	c.mu.Unlock()
}

// AccessToken implements gateway.TokenSource.
func (c *Context) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return ""
	}
	return c.current.AccessToken
}

// Identity returns the signed-in user, if any.
func (c *Context) Identity() (Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return Identity{}, false
	}
	return c.current.User, true
}

// Loading reports whether the persisted session is still being restored.
func (c *Context) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Subscribe returns a channel of auth events and a cancel func that closes it.
// Slow subscribers miss events rather than block the publisher.
func (c *Context) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Event, 8)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// Load restores the persisted session. An expired access token is refreshed;
// a session that cannot be revived is discarded.
func (c *Context) Load(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	s, err := c.read()
	if err != nil {
		return err
	}
	if s == nil {
		return nil
	}

	c.mu.Lock()
	c.current = s
	c.mu.Unlock()

	if s.ExpiresAt > 0 && c.now().Unix() >= s.ExpiresAt {
		c.log.Debug("persisted session expired, refreshing", "user", s.User.UserID)
		return c.Refresh(ctx)
	}

	c.publish(EventRestored)
	c.provision(s.User)
	return nil
}

func (c *Context) SignIn(ctx context.Context, email, password string) (Identity, error) {
	sess, err := c.accounts.SignIn(ctx, email, password)
	if err != nil {
		return Identity{}, err
	}
	return c.establish(sess, EventSignedIn)
}

func (c *Context) SignUp(ctx context.Context, email, password, fullName string) (Identity, error) {
	sess, err := c.accounts.SignUp(ctx, email, password, fullName)
	if err != nil {
		return Identity{}, err
	}
	return c.establish(sess, EventSignedIn)
}

// SignOut clears the local session even when the backend call fails.
func (c *Context) SignOut(ctx context.Context) error {
	token := c.AccessToken()
	if token == "" {
		return nil
	}
	if err := c.accounts.SignOut(ctx, token); err != nil {
		c.log.Warn("remote sign out failed", "err", err)
	}
	return c.clear()
}

// Refresh exchanges the refresh token for a new session. When that fails it
// falls back to re-reading the user with the current access token; only if
// both fail is the session dropped.
func (c *Context) Refresh(ctx context.Context) error {
	c.mu.RLock()
	cur := c.current
	c.mu.RUnlock()
	if cur == nil {
		return gateway.ErrAuthRequired
	}

	sess, err := c.accounts.Refresh(ctx, cur.RefreshToken)
	if err == nil {
		_, err = c.establish(sess, EventRefreshed)
		return err
	}
	c.log.Warn("token refresh failed, re-reading user", "err", err)

	user, whoErr := c.accounts.WhoAmI(ctx, cur.AccessToken)
	if whoErr != nil {
		if errors.Is(whoErr, gateway.ErrAuthRequired) {
			if clearErr := c.clear(); clearErr != nil {
				c.log.Warn("failed to clear session", "err", clearErr)
			}
			return gateway.ErrAuthRequired
		}
		return fmt.Errorf("refresh session: %w", whoErr)
	}

	c.mu.Lock()
	if c.current != nil {
		c.current.User = identityOf(user)
	}
	c.mu.Unlock()
	c.publish(EventRefreshed)
	return nil
}

// Wait blocks until background provisioning started by this Context is done.
func (c *Context) Wait() { c.bg.Wait() }

func (c *Context) establish(sess api.Session, kind EventKind) (Identity, error) {
	s := &stored{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    sess.ExpiresAt,
		User:         identityOf(sess.User),
	}

	c.mu.Lock()
	c.current = s
	c.mu.Unlock()

	if err := c.write(s); err != nil {
		c.log.Warn("failed to persist session", "path", c.path, "err", err)
	}
	c.publish(kind)
	c.provision(s.User)
	return s.User, nil
}

func (c *Context) clear() error {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()

	c.publish(EventSignedOut)
	if c.path == "" {
		return nil
	}
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// provision runs EnsureProfile once per identity, in the background.
// A failure is logged and the identity is retried on its next sighting.
func (c *Context) provision(id Identity) {
	c.mu.Lock()
	p := c.provisioner
	if p == nil || c.seen[id.UserID] {
		c.mu.Unlock()
		return
	}
	c.seen[id.UserID] = true
	c.mu.Unlock()

	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), provisionTimeout)
		defer cancel()

		created, err := p.EnsureProfile(ctx, id.FullName)
		if err != nil {
			c.log.Warn("profile provisioning failed", "user", id.UserID, "err", err)
			c.mu.Lock()
			delete(c.seen, id.UserID)
			c.mu.Unlock()
			return
		}
		if created {
			c.log.Info("profile provisioned", "user", id.UserID)
		}
	}()
}

func (c *Context) publish(kind EventKind) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ev := Event{Kind: kind}
	if c.current != nil {
		id := c.current.User
		ev.Identity = &id
	}
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (c *Context) read() (*stored, error) {
	if c.path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var s stored
	if err := json.Unmarshal(data, &s); err != nil || s.AccessToken == "" {
		c.log.Warn("discarding unreadable session file", "path", c.path)
		return nil, nil
	}
	return &s, nil
}

func (c *Context) write(s *stored) error {
	if c.path == "" {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

func identityOf(u api.User) Identity {
	return Identity{UserID: u.ID, Email: u.Email, FullName: u.FullName}
}
