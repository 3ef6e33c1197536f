package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Env string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		Driver   string
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	GRPC struct {
		Host string
		Port string
	}

	Metrics struct {
		Addr string
	}

	Auth struct {
		Provider  string
		JWTSecret string
		Issuer    string
		TokenTTL  time.Duration
	}

	Supabase struct {
		URL        string
		AnonKey    string
		ServiceKey string
	}

	Storage struct {
		Driver         string
		Bucket         string
		PublicBaseURL  string
		MaxUploadBytes int64
		S3             struct {
			Region          string
			Endpoint        string
			AccessKeyID     string
			SecretAccessKey string
		}
	}

	Match struct {
		MinScore       float64
		SuperLikeBonus float64
		PageSize       int
	}

	Reply struct {
		Producer     string
		GeminiAPIKey string
		GeminiModel  string
		MinDelay     time.Duration
		MaxDelay     time.Duration
	}

	Client struct {
		ServerAddr  string
		SessionFile string
	}
}

// New reads configuration from the environment (and an optional .env file).
// Every key has a default so a bare environment boots a local dev stack.
func New() *Config {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}

	cfg.App.Env = v.GetString("APP_ENV")

	// Logger
	cfg.Log.Level = v.GetString("LOG_LEVEL")
	cfg.Log.Format = v.GetString("LOG_FORMAT")
	cfg.Log.Component = v.GetString("LOG_COMPONENT")
	cfg.Log.Source = v.GetBool("LOG_SOURCE")

	// Database
	cfg.DB.Driver = strings.ToLower(v.GetString("DB_DRIVER"))
	cfg.DB.DSN = v.GetString("DB_DSN")
	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetString("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.Name = v.GetString("DB_NAME")
	if cfg.DB.DSN == "" {
		cfg.DB.DSN = buildDSN(cfg)
	}

	// Redis
	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	// gRPC
	cfg.GRPC.Host = v.GetString("GRPC_HOST")
	cfg.GRPC.Port = v.GetString("GRPC_PORT")

	cfg.Metrics.Addr = v.GetString("METRICS_ADDR")

	// Auth
	cfg.Auth.Provider = strings.ToLower(v.GetString("AUTH_PROVIDER"))
	cfg.Auth.JWTSecret = v.GetString("AUTH_JWT_SECRET")
	cfg.Auth.Issuer = v.GetString("AUTH_ISSUER")
	cfg.Auth.TokenTTL = v.GetDuration("AUTH_TOKEN_TTL")

	cfg.Supabase.URL = strings.TrimRight(v.GetString("SUPABASE_URL"), "/")
	cfg.Supabase.AnonKey = v.GetString("SUPABASE_ANON_KEY")
	cfg.Supabase.ServiceKey = v.GetString("SUPABASE_SERVICE_KEY")

	// Object storage
	cfg.Storage.Driver = strings.ToLower(v.GetString("STORAGE_DRIVER"))
	cfg.Storage.Bucket = v.GetString("STORAGE_BUCKET")
	cfg.Storage.PublicBaseURL = strings.TrimRight(v.GetString("STORAGE_PUBLIC_BASE_URL"), "/")
	if cfg.Storage.PublicBaseURL == "" {
		cfg.Storage.PublicBaseURL = cfg.Supabase.URL
	}
	cfg.Storage.MaxUploadBytes = v.GetInt64("STORAGE_MAX_UPLOAD_BYTES")
	cfg.Storage.S3.Region = v.GetString("S3_REGION")
	cfg.Storage.S3.Endpoint = v.GetString("S3_ENDPOINT")
	cfg.Storage.S3.AccessKeyID = v.GetString("S3_ACCESS_KEY_ID")
	cfg.Storage.S3.SecretAccessKey = v.GetString("S3_SECRET_ACCESS_KEY")

	// Matching
	cfg.Match.MinScore = v.GetFloat64("MATCH_MIN_SCORE")
	cfg.Match.SuperLikeBonus = v.GetFloat64("MATCH_SUPER_LIKE_BONUS")
	cfg.Match.PageSize = v.GetInt("MATCH_PAGE_SIZE")

	// Companion replies
	cfg.Reply.Producer = strings.ToLower(v.GetString("REPLY_PRODUCER"))
	cfg.Reply.GeminiAPIKey = v.GetString("GEMINI_API_KEY")
	cfg.Reply.GeminiModel = v.GetString("GEMINI_MODEL")
	cfg.Reply.MinDelay = v.GetDuration("REPLY_MIN_DELAY")
	cfg.Reply.MaxDelay = v.GetDuration("REPLY_MAX_DELAY")

	// Client
	cfg.Client.ServerAddr = v.GetString("CLIENT_SERVER_ADDR")
	cfg.Client.SessionFile = v.GetString("CLIENT_SESSION_FILE")

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_COMPONENT", "grpc_server")
	v.SetDefault("LOG_SOURCE", false)

	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "")
	v.SetDefault("DB_USER", "companion")
	v.SetDefault("DB_PASSWORD", "companion")
	v.SetDefault("DB_NAME", "companion")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("GRPC_HOST", "127.0.0.1")
	v.SetDefault("GRPC_PORT", "50051")
	v.SetDefault("METRICS_ADDR", "127.0.0.1:9090")

	v.SetDefault("AUTH_PROVIDER", "local")
	v.SetDefault("AUTH_JWT_SECRET", "dev-secret-change-me")
	v.SetDefault("AUTH_ISSUER", "companion")
	v.SetDefault("AUTH_TOKEN_TTL", time.Hour)

	v.SetDefault("SUPABASE_URL", "")
	v.SetDefault("SUPABASE_ANON_KEY", "")
	v.SetDefault("SUPABASE_SERVICE_KEY", "")

	v.SetDefault("STORAGE_DRIVER", "memory")
	v.SetDefault("STORAGE_BUCKET", "profile-pics")
	v.SetDefault("STORAGE_PUBLIC_BASE_URL", "")
	v.SetDefault("STORAGE_MAX_UPLOAD_BYTES", 5<<20)
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY_ID", "")
	v.SetDefault("S3_SECRET_ACCESS_KEY", "")

	v.SetDefault("MATCH_MIN_SCORE", 50)
	v.SetDefault("MATCH_SUPER_LIKE_BONUS", 15)
	v.SetDefault("MATCH_PAGE_SIZE", 20)

	v.SetDefault("REPLY_PRODUCER", "canned")
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("REPLY_MIN_DELAY", time.Second)
	v.SetDefault("REPLY_MAX_DELAY", 3*time.Second)

	v.SetDefault("CLIENT_SERVER_ADDR", "127.0.0.1:50051")
	v.SetDefault("CLIENT_SESSION_FILE", ".companion-session.json")
}

func buildDSN(cfg *Config) string {
	switch cfg.DB.Driver {
	case "mysql":
		port := cfg.DB.Port
		if port == "" {
			port = "3306"
		}
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, port, cfg.DB.Name,
		)
	case "postgres":
		port := cfg.DB.Port
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.DB.Host, port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name,
		)
	default:
		return "file:" + cfg.DB.Name + ".db?_foreign_keys=on"
	}
}

// Validate rejects combinations the server cannot boot with.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}

	switch c.Auth.Provider {
	case "local":
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("AUTH_JWT_SECRET is required for the local auth provider")
		}
	case "supabase":
		if c.Supabase.URL == "" || c.Supabase.AnonKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_ANON_KEY are required for the supabase auth provider")
		}
	default:
		return fmt.Errorf("unsupported AUTH_PROVIDER %q", c.Auth.Provider)
	}

	switch c.Storage.Driver {
	case "memory":
	case "supabase":
		if c.Supabase.URL == "" || c.Supabase.ServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required for supabase storage")
		}
	case "s3":
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("S3_REGION is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Storage.Driver)
	}

	if c.Match.PageSize < 1 || c.Match.PageSize > 50 {
		return fmt.Errorf("MATCH_PAGE_SIZE must be within 1..50, got %d", c.Match.PageSize)
	}
	if c.Reply.MinDelay > c.Reply.MaxDelay {
		return fmt.Errorf("REPLY_MIN_DELAY must not exceed REPLY_MAX_DELAY")
	}
	return nil
}
