package account_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/oggyb/companion/internal/api"
	"github.com/oggyb/companion/internal/app"
	"github.com/oggyb/companion/internal/server"
	"github.com/oggyb/companion/internal/service/account"
	"github.com/oggyb/companion/internal/testutil"
)

func setup(t *testing.T) *api.AccountClient {
	t.Helper()
	env := testutil.NewEnv(t, func(a *app.AppContext) server.Registrar { return account.NewRegistrar(a) })
	return api.NewAccountClient(env.Conn)
}

func bearer(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func TestSignUpSignInWhoAmI(t *testing.T) {
	client := setup(t)
	ctx := context.Background()

	created, err := client.SignUp(ctx, &api.SignUpRequest{Email: "ada@example.com", Password: "hunter22", FullName: "Ada"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.AccessToken)
	assert.NotEmpty(t, created.RefreshToken)
	assert.Equal(t, "Ada", created.User.FullName)

	_, err = client.SignUp(ctx, &api.SignUpRequest{Email: "ada@example.com", Password: "hunter22"})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	sess, err := client.SignIn(ctx, &api.SignInRequest{Email: "ada@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, created.User.ID, sess.User.ID)

	me, err := client.WhoAmI(bearer(sess.AccessToken), &api.Empty{})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", me.Email)

	refreshed, err := client.Refresh(ctx, &api.RefreshRequest{RefreshToken: sess.RefreshToken})
	require.NoError(t, err)
	assert.Equal(t, created.User.ID, refreshed.User.ID)

	_, err = client.SignOut(bearer(refreshed.AccessToken), &api.Empty{})
	require.NoError(t, err)
}

func TestSignInRejections(t *testing.T) {
	client := setup(t)
	ctx := context.Background()

	_, err := client.SignUp(ctx, &api.SignUpRequest{Email: "bo@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = client.SignIn(ctx, &api.SignInRequest{Email: "bo@example.com", Password: "wrong-horse"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.SignIn(ctx, &api.SignInRequest{Email: "nobody@example.com", Password: "whatever"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.SignUp(ctx, &api.SignUpRequest{Email: "not-an-email", Password: "secret1"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.SignUp(ctx, &api.SignUpRequest{Email: "short@example.com", Password: "12345"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Refresh(ctx, &api.RefreshRequest{RefreshToken: "garbage"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.WhoAmI(ctx, &api.Empty{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}
