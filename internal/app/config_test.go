package app

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Addr:        "0.0.0.0:8080",
		DatabaseURL: "postgres://localhost/shop",
		Order:       OrderConfig{DefaultShipping: "49.99"},
		Auth:        AuthConfig{JWTSecret: "secret"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid"},
		{
			name:    "missing database",
			mutate:  func(c *Config) { c.DatabaseURL = "" },
			wantErr: "database URL is required",
		},
		{
			name:    "missing secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "" },
			wantErr: "JWT secret is required",
		},
		{
			name: "auth disabled without secret",
			mutate: func(c *Config) {
				c.Auth.JWTSecret = ""
				c.Auth.Disabled = true
			},
		},
		{
			name:    "negative shipping",
			mutate:  func(c *Config) { c.Order.DefaultShipping = "-1" },
			wantErr: "invalid default shipping",
		},
		{
			name:    "malformed shipping",
			mutate:  func(c *Config) { c.Order.DefaultShipping = "free" },
			wantErr: "invalid default shipping",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			err := cfg.validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_OrderConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Order = OrderConfig{
		DefaultShipping: "10.50",
		TxTimeout:       2 * time.Second,
		DefaultLimit:    7,
		MaxLimit:        50,
	}

	oc, err := cfg.OrderConfig()
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("10.50").Equal(oc.DefaultShipping))
	assert.Equal(t, 2*time.Second, oc.TxTimeout)
	assert.Equal(t, 7, oc.DefaultLimit)
	assert.Equal(t, 50, oc.MaxLimit)
}

func TestConfig_OrderConfigKeepsDefaults(t *testing.T) {
	cfg := validConfig()

	oc, err := cfg.OrderConfig()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, oc.TxTimeout)
	assert.Equal(t, 5, oc.DefaultLimit)
	assert.Equal(t, 100, oc.MaxLimit)
}

func TestConfig_ApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9000")

	cfg := Config{Addr: "0.0.0.0:8080"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)

	cfg = Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://explicit/db"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit/db", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}
