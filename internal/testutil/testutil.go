// Package testutil wires an in-process backend for tests: in-memory SQLite,
// miniredis, the local auth provider, an in-memory object store and a
// bufconn gRPC server running the production interceptor chain.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oggyb/companion/internal/api"
	"github.com/oggyb/companion/internal/app"
	"github.com/oggyb/companion/internal/auth"
	"github.com/oggyb/companion/internal/cache"
	"github.com/oggyb/companion/internal/config"
	"github.com/oggyb/companion/internal/db"
	"github.com/oggyb/companion/internal/repository"
	"github.com/oggyb/companion/internal/server"
	"github.com/oggyb/companion/internal/storage"
)

const jwtSecret = "test-secret"

// OpenDB opens an isolated in-memory SQLite DB, migrated and seeded with
// db.SeedMinimalTestData.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	database, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		TranslateError: true,
		Logger:         logger.Discard,
	})
	require.NoError(t, err)

	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(database))
	require.NoError(t, db.SeedMinimalTestData(database))
	return database
}

// Env is a running backend.
type Env struct {
	App      *app.AppContext
	Redis    *miniredis.Miniredis
	Store    *storage.MemoryStore
	Provider *auth.LocalProvider
	Conn     *grpc.ClientConn
}

// NewEnv builds the AppContext and serves the given registrars over bufconn.
func NewEnv(t *testing.T, registrars ...func(*app.AppContext) server.Registrar) *Env {
	t.Helper()

	database := OpenDB(t)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	cfg.Storage.PublicBaseURL = "https://cdn.test"

	issuer, err := auth.NewJWTIssuer(jwtSecret, cfg.Auth.Issuer, time.Hour)
	require.NoError(t, err)
	provider := auth.NewLocalProvider(repository.NewAccountRepository(database), issuer)
	store := storage.NewMemoryStore()

	appCtx := app.New(
		database,
		cache.NewRedisCache(cfg),
		slog.New(slog.NewTextHandler(io.Discard, nil)), // discard logs in tests
		app.WithConfig(cfg),
		app.WithAuth(provider),
		app.WithStorage(store),
	)

	regs := make([]server.Registrar, 0, len(registrars))
	for _, r := range registrars {
		regs = append(regs, r(appCtx))
	}
	grpcServer := server.NewGRPCServer(appCtx, regs...)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = grpcServer.Serve(lis) }()
	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(api.CallOption()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &Env{App: appCtx, Redis: mr, Store: store, Provider: provider, Conn: conn}
}

// Token issues an access token for userID without going through sign-up.
func (e *Env) Token(t *testing.T, userID string) string {
	t.Helper()
	sess, err := e.Provider.Issue(auth.Identity{UserID: userID, Email: userID + "@example.com"})
	require.NoError(t, err)
	return sess.AccessToken
}

// AuthCtx returns a context carrying a bearer token for userID.
func (e *Env) AuthCtx(t *testing.T, userID string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+e.Token(t, userID))
}
