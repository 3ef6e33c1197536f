package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/gorm"

	"github.com/oggyb/companion/internal/app"
	"github.com/oggyb/companion/internal/auth"
	"github.com/oggyb/companion/internal/cache"
	"github.com/oggyb/companion/internal/config"
	"github.com/oggyb/companion/internal/db"
	"github.com/oggyb/companion/internal/logger"
	"github.com/oggyb/companion/internal/metrics"
	"github.com/oggyb/companion/internal/repository"
	"github.com/oggyb/companion/internal/server"
	"github.com/oggyb/companion/internal/service/account"
	"github.com/oggyb/companion/internal/service/companion"
	"github.com/oggyb/companion/internal/storage"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	database, err := db.NewDB(cfg)
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}

	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}

	provider, err := newAuthProvider(cfg, database)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	store, err := newStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	collector := metrics.NewCollector("companion")

	appCtx := app.New(database, redisCache, log,
		app.WithConfig(cfg),
		app.WithAuth(provider),
		app.WithStorage(store),
		app.WithMetrics(collector),
	)

	if cfg.App.Env == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	registrars := []server.Registrar{
		companion.NewRegistrar(appCtx),
		account.NewRegistrar(appCtx),
	}
	grpcServer := server.NewGRPCServer(appCtx, registrars...)

	ops := server.NewOpsRouter(collector, map[string]server.HealthCheck{
		"db": func(ctx context.Context) error {
			sqlDB, err := database.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": redisCache.Ping,
	})

	err = server.Run(ctx, cfg, log, grpcServer, ops)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newAuthProvider(cfg *config.Config, database *gorm.DB) (auth.Provider, error) {
	switch cfg.Auth.Provider {
	case "supabase":
		return auth.NewSupabaseProvider(cfg.Supabase.URL, cfg.Supabase.AnonKey)
	default:
		issuer, err := auth.NewJWTIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
		if err != nil {
			return nil, err
		}
		return auth.NewLocalProvider(repository.NewAccountRepository(database), issuer), nil
	}
}

// newStore picks the media backend. Remote backends sit behind a circuit breaker.
func newStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case "supabase":
		s, err := storage.NewSupabaseStore(cfg.Supabase.URL, cfg.Supabase.ServiceKey, cfg.Storage.Bucket)
		if err != nil {
			return nil, err
		}
		return storage.NewBreakerStore("storage-supabase", s, log), nil
	case "s3":
		s, err := storage.NewS3Store(ctx, storage.S3Config{
			Region:          cfg.Storage.S3.Region,
			Endpoint:        cfg.Storage.S3.Endpoint,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
			Bucket:          cfg.Storage.Bucket,
		})
		if err != nil {
			return nil, err
		}
		return storage.NewBreakerStore("storage-s3", s, log), nil
	default:
		return storage.NewMemoryStore(), nil
	}
}
