package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, ":memory:", cfg.SQLitePath)
	assert.Equal(t, "inproc", cfg.GatewayMode)
	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	assert.True(t, cfg.SeedDemoData)
	assert.Equal(t, ":8080", cfg.GetHTTPAddr())
}

func TestNewFromEnvironment(t *testing.T) {
	t.Setenv("CONCIERGE_HTTP_PORT", "9090")
	t.Setenv("CONCIERGE_GATEWAY_TIMEOUT", "2s")
	t.Setenv("CONCIERGE_SEED_DEMO_DATA", "false")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, 2*time.Second, cfg.GatewayTimeout)
	assert.False(t, cfg.SeedDemoData)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "unsupported driver",
			mutate:  func(c *Config) { c.DBDriver = "oracle" },
			wantErr: "unsupported DB_DRIVER",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.DBDriver = "postgres" },
			wantErr: "POSTGRES_DSN required",
		},
		{
			name:    "unsupported gateway mode",
			mutate:  func(c *Config) { c.GatewayMode = "carrier-pigeon" },
			wantErr: "unsupported GATEWAY_MODE",
		},
		{
			name:    "non-positive timeout",
			mutate:  func(c *Config) { c.GatewayTimeout = 0 },
			wantErr: "GATEWAY_TIMEOUT must be positive",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewForTesting()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}
