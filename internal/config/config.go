package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Config holds the configuration for the concierge service.
// Environment variables are parsed from the CONCIERGE_ prefix,
// e.g. CONCIERGE_HTTP_PORT, CONCIERGE_DB_DRIVER.
type Config struct {
	// HTTP configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Storage: sqlite (default, in-memory unless a path is set) or postgres.
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:":memory:"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// Gateway key material and transport.
	KeyDir         string        `envconfig:"KEY_DIR" default:"keys"`
	GatewayMode    string        `envconfig:"GATEWAY_MODE" default:"inproc"`
	GatewayURL     string        `envconfig:"GATEWAY_URL" default:"http://localhost:8080"`
	GatewayTimeout time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"10s"`

	// Demo data seeding on startup.
	SeedDemoData bool `envconfig:"SEED_DEMO_DATA" default:"true"`

	// Activity sink buffer size.
	ActivityBuffer int `envconfig:"ACTIVITY_BUFFER" default:"256"`
}

// Validate checks enum-valued fields.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN required when DB_DRIVER=postgres")
	}
	switch c.GatewayMode {
	case "inproc", "remote":
	default:
		return fmt.Errorf("unsupported GATEWAY_MODE: %s", c.GatewayMode)
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}
	return nil
}

// New creates a Config by parsing CONCIERGE_-prefixed environment variables.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("CONCIERGE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Info().
		Int("http_port", cfg.HTTPPort).
		Str("db_driver", cfg.DBDriver).
		Str("gateway_mode", cfg.GatewayMode).
		Dur("gateway_timeout", cfg.GatewayTimeout).
		Bool("seed_demo_data", cfg.SeedDemoData).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting returns a config suitable for unit tests: in-memory sqlite,
// in-process gateway, no seeding.
func NewForTesting() *Config {
	return &Config{
		HTTPPort:       8080,
		DBDriver:       "sqlite",
		SQLitePath:     ":memory:",
		KeyDir:         "",
		GatewayMode:    "inproc",
		GatewayTimeout: 5 * time.Second,
		SeedDemoData:   false,
		ActivityBuffer: 16,
	}
}

// GetHTTPAddr returns the HTTP server listen address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
