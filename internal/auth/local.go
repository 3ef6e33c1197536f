package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/oggyb/companion/internal/db"
	"github.com/oggyb/companion/internal/repository"
)

// LocalProvider keeps accounts in the service database and signs its own tokens.
type LocalProvider struct {
	*JWTIssuer
	accounts *repository.AccountRepository
}

func NewLocalProvider(accounts *repository.AccountRepository, issuer *JWTIssuer) *LocalProvider {
	return &LocalProvider{JWTIssuer: issuer, accounts: accounts}
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (Session, error) {
	acct, err := p.accounts.GetByEmail(ctx, email)
	if repository.IsNotFound(err) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}

	// last-login is informational
	_ = p.accounts.TouchLogin(ctx, acct.ID, time.Now())

	return p.Issue(identityOf(acct))
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password, fullName string) (Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	acct := &db.Account{Email: email, PasswordHash: string(hash), FullName: fullName}
	if err := p.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Session{}, ErrEmailTaken
		}
		return Session{}, err
	}
	return p.Issue(identityOf(*acct))
}

// Refresh re-reads the account so deactivated users cannot keep refreshing.
func (p *LocalProvider) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	id, err := p.VerifyRefresh(refreshToken)
	if err != nil {
		return Session{}, err
	}
	acct, err := p.accounts.GetByID(ctx, id.UserID)
	if repository.IsNotFound(err) {
		return Session{}, ErrInvalidToken
	}
	if err != nil {
		return Session{}, err
	}
	return p.Issue(identityOf(acct))
}

// SignOut is a no-op: local tokens are stateless and expire on their own.
func (p *LocalProvider) SignOut(context.Context, string) error { return nil }

func identityOf(a db.Account) Identity {
	return Identity{UserID: a.ID, Email: a.Email, FullName: a.FullName}
}
