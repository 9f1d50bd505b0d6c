// Package config loads skillgate settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds all runtime settings.
type Config struct {
	// HTTP query API bind address.
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PORT" envDefault:"8080"`

	// Upstream Talent Management API.
	APIBaseURL string        `env:"TM_API_BASE_URL" envDefault:"http://localhost:8000"`
	APIKey     string        `env:"TM_API_KEY"`
	APITimeout time.Duration `env:"TM_API_TIMEOUT" envDefault:"30s"`

	// Audit log.
	AuditDBPath     string `env:"AUDIT_DB_PATH" envDefault:"audit.db"`
	AuditPolicyPath string `env:"AUDIT_POLICY_PATH"`

	// Static MCP resources (schema, business questions).
	ResourcesDir string `env:"RESOURCES_DIR" envDefault:"resources"`

	// Allowed origins for the monitoring dashboard.
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:4173"`
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	// Missing .env is fine; the environment alone is a full configuration.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the host:port for the HTTP query API.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
