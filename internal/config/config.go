// Package config reads process-wide settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/tourdesk/internal/dataerr"
)

// Adapter variant names.
const (
	AdapterMock     = "mock"
	AdapterSQLite   = "sqlite"
	AdapterSupabase = "supabase"
)

// Config is the process configuration. Field defaults apply when the
// variable is unset.
type Config struct {
	// Adapter selects the data backend: mock, sqlite or supabase.
	Adapter string `env:"TOURDESK_DATA_ADAPTER" envDefault:"mock"`

	// Latency is the simulated round trip of the mock adapter.
	Latency time.Duration `env:"TOURDESK_MOCK_LATENCY" envDefault:"0s"`

	// PollInterval drives real-time refresh of bindings.
	PollInterval time.Duration `env:"TOURDESK_POLL_INTERVAL" envDefault:"30s"`

	// DataDir holds the sqlite database and the session file.
	DataDir string `env:"TOURDESK_DATA_DIR"`

	// DatabaseURL is the Postgres connection string of a Supabase project.
	DatabaseURL string `env:"TOURDESK_DATABASE_URL"`

	// SessionStore is keyring, file or none.
	SessionStore string `env:"TOURDESK_SESSION_STORE" envDefault:"file"`

	// JWTSecret signs access tokens.
	JWTSecret string `env:"TOURDESK_JWT_SECRET" envDefault:"tourdesk-local-secret"`

	// SeedFile replaces the built-in mock fixtures.
	SeedFile string `env:"TOURDESK_SEED_FILE"`

	// SchemaFile replaces the built-in table schemas.
	SchemaFile string `env:"TOURDESK_SCHEMA_FILE"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, dataerr.Config(fmt.Sprintf("parse env: %v", err))
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Adapter = strings.ToLower(strings.TrimSpace(c.Adapter))
	c.SessionStore = strings.ToLower(strings.TrimSpace(c.SessionStore))
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
}

// Validate checks values the backends cannot recover from. The adapter
// name itself is checked by the adapter factory.
func (c Config) Validate() error {
	if c.Latency < 0 {
		return dataerr.Config("TOURDESK_MOCK_LATENCY must not be negative")
	}
	if c.PollInterval <= 0 {
		return dataerr.Config("TOURDESK_POLL_INTERVAL must be positive")
	}
	switch c.SessionStore {
	case "keyring", "file", "none":
	default:
		return dataerr.Config(fmt.Sprintf("TOURDESK_SESSION_STORE must be keyring, file or none, got %q", c.SessionStore))
	}
	if c.Adapter == AdapterSupabase && c.DatabaseURL == "" {
		return dataerr.Config("TOURDESK_DATABASE_URL is required for the supabase adapter")
	}
	if c.JWTSecret == "" {
		return dataerr.Config("TOURDESK_JWT_SECRET must not be empty")
	}
	return nil
}

// DefaultDataDir is the per-user data directory.
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "tourdesk")
	}
	return ".tourdesk"
}

// DatabasePath is the sqlite database location.
func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "tourdesk.db")
}
