package auth_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oggyb/companion/internal/auth"
	"github.com/oggyb/companion/internal/db"
	"github.com/oggyb/companion/internal/repository"
)

func newIssuer(t *testing.T, secret string, ttl time.Duration) *auth.JWTIssuer {
	t.Helper()
	iss, err := auth.NewJWTIssuer(secret, "companion", ttl)
	require.NoError(t, err)
	return iss
}

func TestJWTIssuer_RoundTrip(t *testing.T) {
	iss := newIssuer(t, "s3cret", time.Hour)

	sess, err := iss.Issue(auth.Identity{UserID: "u1", Email: "a@b.c", FullName: "Ada"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.AccessToken)
	assert.NotEmpty(t, sess.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.ExpiresAt, 5*time.Second)

	id, err := iss.Verify(context.Background(), sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{UserID: "u1", Email: "a@b.c", FullName: "Ada"}, id)

	// token kinds are not interchangeable
	_, err = iss.Verify(context.Background(), sess.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	_, err = iss.VerifyRefresh(sess.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	id, err = iss.VerifyRefresh(sess.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
}

func TestJWTIssuer_Rejects(t *testing.T) {
	iss := newIssuer(t, "s3cret", time.Hour)
	other := newIssuer(t, "different", time.Hour)

	sess, err := other.Issue(auth.Identity{UserID: "u1"})
	require.NoError(t, err)
	_, err = iss.Verify(context.Background(), sess.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken, "wrong secret")

	_, err = iss.Verify(context.Background(), "")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = iss.Verify(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		TokenUse: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    "companion",
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = iss.Verify(context.Background(), expired)
	assert.ErrorIs(t, err, auth.ErrInvalidToken, "expired")
}

func TestNewJWTIssuer_RequiresSecret(t *testing.T) {
	_, err := auth.NewJWTIssuer("", "companion", time.Hour)
	assert.Error(t, err)
}

func TestIdentityContext(t *testing.T) {
	_, ok := auth.FromContext(context.Background())
	assert.False(t, ok)

	ctx := auth.WithIdentity(context.Background(), auth.Identity{UserID: "u1"})
	id, ok := auth.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", id.UserID)

	ctx = auth.WithToken(ctx, "tok")
	assert.Equal(t, "tok", auth.TokenFromContext(ctx))
}

func setupLocal(t *testing.T) *auth.LocalProvider {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(database))

	return auth.NewLocalProvider(repository.NewAccountRepository(database), newIssuer(t, "s3cret", time.Hour))
}

func TestLocalProvider_SignUpSignInRefresh(t *testing.T) {
	ctx := context.Background()
	p := setupLocal(t)

	sess, err := p.SignUp(ctx, "Ada@Example.com", "hunter22", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", sess.Identity.Email)
	assert.NotEmpty(t, sess.Identity.UserID)

	_, err = p.SignUp(ctx, "ada@example.com", "another1", "")
	assert.ErrorIs(t, err, auth.ErrEmailTaken)

	_, err = p.SignIn(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = p.SignIn(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	in, err := p.SignIn(ctx, "ADA@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, sess.Identity.UserID, in.Identity.UserID)

	id, err := p.Verify(ctx, in.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, sess.Identity.UserID, id.UserID)

	refreshed, err := p.Refresh(ctx, in.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "Ada", refreshed.Identity.FullName)

	_, err = p.Refresh(ctx, in.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	assert.NoError(t, p.SignOut(ctx, in.AccessToken))
}
