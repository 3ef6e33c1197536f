package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/companion/internal/auth"
	"github.com/oggyb/companion/internal/cache"
	"github.com/oggyb/companion/internal/config"
	"github.com/oggyb/companion/internal/metrics"
	"github.com/oggyb/companion/internal/storage"
)

// AppContext holds shared dependencies (DB, Redis, Logger, auth, storage, metrics)
type AppContext struct {
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Config     *config.Config
	Auth       auth.Provider
	Storage    storage.Store
	Metrics    *metrics.Collector
}

// Option customizes an AppContext built by New.
type Option func(*AppContext)

func WithConfig(cfg *config.Config) Option { return func(a *AppContext) { a.Config = cfg } }
func WithAuth(p auth.Provider) Option { return func(a *AppContext) { a.Auth = p } }
func WithStorage(s storage.Store) Option { return func(a *AppContext) { a.Storage = s } }
func WithMetrics(m *metrics.Collector) Option { return func(a *AppContext) { a.Metrics = m } }

// New creates a new AppContext. Missing optional dependencies get dev
// defaults: config.New(), an in-memory store and a fresh metrics collector.
func New(db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, opts ...Option) *AppContext {
	a := &AppContext{
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.Config == nil {
		a.Config = config.New()
	}
	if a.Storage == nil {
		a.Storage = storage.NewMemoryStore()
	}
	if a.Metrics == nil {
		a.Metrics = metrics.NewCollector("companion")
	}
	return a
}
