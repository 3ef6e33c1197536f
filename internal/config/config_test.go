package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/companion/internal/config"
)

func TestNew_Defaults(t *testing.T) {
	cfg := config.New()

	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "local", cfg.Auth.Provider)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "profile-pics", cfg.Storage.Bucket)
	assert.Equal(t, int64(5<<20), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, 20, cfg.Match.PageSize)
	assert.Equal(t, time.Second, cfg.Reply.MinDelay)
	assert.Equal(t, 3*time.Second, cfg.Reply.MaxDelay)
	assert.NoError(t, cfg.Validate())
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "matches")
	t.Setenv("MATCH_PAGE_SIZE", "35")
	t.Setenv("REPLY_MAX_DELAY", "5s")
	t.Setenv("SUPABASE_URL", "https://proj.supabase.co/")

	cfg := config.New()

	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Contains(t, cfg.DB.DSN, "host=db.internal")
	assert.Contains(t, cfg.DB.DSN, "port=5432")
	assert.Contains(t, cfg.DB.DSN, "dbname=matches")
	assert.Equal(t, 35, cfg.Match.PageSize)
	assert.Equal(t, 5*time.Second, cfg.Reply.MaxDelay)
	assert.Equal(t, "https://proj.supabase.co", cfg.Supabase.URL)
	// storage URLs default to the supabase project
	assert.Equal(t, "https://proj.supabase.co", cfg.Storage.PublicBaseURL)
}

func TestNew_MySQLDSN(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "pw")

	cfg := config.New()
	assert.Equal(t, "root:pw@tcp(localhost:3306)/companion?parseTime=true&charset=utf8mb4&loc=UTC", cfg.DB.DSN)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *config.Config)
		errMsg string
	}{
		{"bad driver", func(c *config.Config) { c.DB.Driver = "oracle" }, "DB_DRIVER"},
		{"supabase auth without url", func(c *config.Config) { c.Auth.Provider = "supabase"; c.Supabase.URL = "" }, "SUPABASE_URL"},
		{"s3 without region", func(c *config.Config) { c.Storage.Driver = "s3"; c.Storage.S3.Region = "" }, "S3_REGION"},
		{"page too large", func(c *config.Config) { c.Match.PageSize = 51 }, "MATCH_PAGE_SIZE"},
		{"inverted delays", func(c *config.Config) { c.Reply.MinDelay = 4 * time.Second }, "REPLY_MIN_DELAY"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.New()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}
