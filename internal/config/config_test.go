package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MemoryDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", StorageDriverMemory)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("API_KEYS", " a , b")
	t.Setenv("IDEMPOTENCY_WINDOW", "30s")
	t.Setenv("LOCATOR_RADIUS_KM", "12.5")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, []string{"a", "b"}, cfg.APIKeys)
	assert.Equal(t, 30*time.Second, cfg.IdempotencyWindow)
	assert.Equal(t, 12.5, cfg.LocatorRadiusKm)
	assert.Equal(t, 5, cfg.LocatorLimit)
}

func TestLoadConfig_PostgresRequiresURL(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", StorageDriverPostgres)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := LoadConfig()

	require.Error(t, err)
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestValidate(t *testing.T) {
	base := Config{
		StorageDriver:            StorageDriverMemory,
		JWTSecret:                "s",
		LocatorRadiusKm:          50,
		OutboxSize:               8,
		ReplayBufferSize:         8,
		ResponderRefreshInterval: time.Minute,
		FanoutTimeout:            time.Second,
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "ok", mutate: func(c *Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.StorageDriver = "mongo" }, wantErr: "STORAGE_DRIVER"},
		{name: "no secret", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: "JWT_SECRET"},
		{name: "bad radius", mutate: func(c *Config) { c.LocatorRadiusKm = 0 }, wantErr: "LOCATOR_RADIUS_KM"},
		{name: "bad outbox", mutate: func(c *Config) { c.OutboxSize = 0 }, wantErr: "OUTBOX_SIZE"},
		{name: "zero refresh interval", mutate: func(c *Config) { c.ResponderRefreshInterval = 0 }, wantErr: "RESPONDER_REFRESH_INTERVAL"},
		{name: "negative refresh interval", mutate: func(c *Config) { c.ResponderRefreshInterval = -time.Second }, wantErr: "RESPONDER_REFRESH_INTERVAL"},
		{name: "zero fanout timeout", mutate: func(c *Config) { c.FanoutTimeout = 0 }, wantErr: "FANOUT_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
