package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"

	defaultAccessTTL = time.Hour
	refreshTTL       = 30 * 24 * time.Hour

	// audience and role mirror what the hosted auth service puts in its tokens
	tokenAudience = "authenticated"
	tokenRole     = "authenticated"
)

// Claims is the token payload. Subject carries the user id.
type Claims struct {
	Email    string `json:"email,omitempty"`
	FullName string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
	TokenUse string `json:"token_use"`
	jwt.RegisteredClaims
}

// JWTIssuer mints and checks HS256 tokens with a shared secret.
type JWTIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTIssuer(secret, issuer string, ttl time.Duration) (*JWTIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = defaultAccessTTL
	}
	return &JWTIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue returns a fresh access/refresh pair for id.
func (j *JWTIssuer) Issue(id Identity) (Session, error) {
	now := j.now().UTC()
	access, err := j.sign(id, tokenUseAccess, now, j.ttl)
	if err != nil {
		return Session{}, err
	}
	refresh, err := j.sign(id, tokenUseRefresh, now, refreshTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(j.ttl),
		Identity:     id,
	}, nil
}

func (j *JWTIssuer) sign(id Identity, use string, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		Email:    id.Email,
		FullName: id.FullName,
		Role:     tokenRole,
		TokenUse: use,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    j.issuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", use, err)
	}
	return token, nil
}

// Verify accepts access tokens only.
func (j *JWTIssuer) Verify(_ context.Context, token string) (Identity, error) {
	return j.parse(token, tokenUseAccess)
}

// VerifyRefresh accepts refresh tokens only.
func (j *JWTIssuer) VerifyRefresh(token string) (Identity, error) {
	return j.parse(token, tokenUseRefresh)
}

func (j *JWTIssuer) parse(token, use string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(tokenAudience),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	// tokens minted by the hosted service carry no token_use; treat them as access tokens
	got := claims.TokenUse
	if got == "" {
		got = tokenUseAccess
	}
	if got != use || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: claims.Subject, Email: claims.Email, FullName: claims.FullName}, nil
}
