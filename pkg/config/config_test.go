package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("EMAIL_PROVIDER", "dev")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, 3*time.Second, cfg.Store.Timeout)
	assert.Equal(t, "DYN", cfg.Waitlist.CodePrefix)
	assert.Equal(t, MinCodeLength, cfg.Waitlist.CodeLength)
	assert.Equal(t, 10, cfg.Waitlist.RecentLimit)
	assert.Equal(t, 20, cfg.Waitlist.LeaderboardLimit)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/waitlist?sslmode=disable")
	t.Setenv("STORE_TIMEOUT", "750ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://dynaprizes.com, https://www.dynaprizes.com ,")
	t.Setenv("WAITLIST_RECENT_LIMIT", "not-a-number")
	t.Setenv("EMAIL_PROVIDER", "dev")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, StorePostgres, cfg.Store.Driver)
	assert.Equal(t, 750*time.Millisecond, cfg.Store.Timeout)
	assert.Equal(t, []string{"https://dynaprizes.com", "https://www.dynaprizes.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 10, cfg.Waitlist.RecentLimit)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }},
		{"postgres without url", func(c *Config) { c.Store.Driver = StorePostgres; c.Database.URL = " " }},
		{"short codes", func(c *Config) { c.Waitlist.CodeLength = 5 }},
		{"zero leaderboard", func(c *Config) { c.Waitlist.LeaderboardLimit = 0 }},
		{"zero timeout", func(c *Config) { c.Store.Timeout = 0 }},
		{"mailersend without key", func(c *Config) { c.Email.Provider = EmailProviderMailerSend; c.Email.MailerSendKey = "" }},
		{"unknown email provider", func(c *Config) { c.Email.Provider = "pigeon" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STORE_DRIVER", "memory")
			t.Setenv("EMAIL_PROVIDER", "dev")
			cfg := Load()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
