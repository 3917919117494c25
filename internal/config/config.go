// Package config loads the SageCompass service configuration: a layered TOML
// root config plus the declarative model catalog and guardrail files it
// points to.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/cleverhoods/sagecompass-sub001/internal/observability"
	"github.com/cleverhoods/sagecompass-sub001/pkg/auth"
	"github.com/cleverhoods/sagecompass-sub001/pkg/database"
	"github.com/cleverhoods/sagecompass-sub001/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvSageCompassEnv             = "SAGECOMPASS_ENV"
	EnvSageCompassShutdownTimeout = "SAGECOMPASS_SHUTDOWN_TIMEOUT"
	EnvSageCompassVersion         = "SAGECOMPASS_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "SAGECOMPASS_DB_HOST",
	Port:            "SAGECOMPASS_DB_PORT",
	Name:            "SAGECOMPASS_DB_NAME",
	User:            "SAGECOMPASS_DB_USER",
	Password:        "SAGECOMPASS_DB_PASSWORD",
	SSLMode:         "SAGECOMPASS_DB_SSL_MODE",
	MaxOpenConns:    "SAGECOMPASS_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "SAGECOMPASS_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "SAGECOMPASS_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "SAGECOMPASS_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "SAGECOMPASS_STORAGE_CONTAINER_NAME",
	ConnectionString: "SAGECOMPASS_STORAGE_CONNECTION_STRING",
	AccountURL:       "SAGECOMPASS_STORAGE_ACCOUNT_URL",
	MaxListSize:      "SAGECOMPASS_STORAGE_MAX_LIST_SIZE",
}

var loggingEnv = &observability.Env{
	Level:  "SAGECOMPASS_LOG_LEVEL",
	Format: "SAGECOMPASS_LOG_FORMAT",
}

var authEnv = &auth.Env{
	Enabled:  "SAGECOMPASS_AUTH_ENABLED",
	Issuer:   "SAGECOMPASS_AUTH_ISSUER",
	Audience: "SAGECOMPASS_AUTH_AUDIENCE",
}

// Config is the root configuration for the SageCompass service.
type Config struct {
	Server          ServerConfig         `toml:"server"`
	Database        database.Config      `toml:"database"`
	Storage         storage.Config       `toml:"storage"`
	API             APIConfig            `toml:"api"`
	Logging         observability.Config `toml:"logging"`
	Auth            auth.Config          `toml:"auth"`
	Agents          AgentsConfig         `toml:"agents"`
	ShutdownTimeout string               `toml:"shutdown_timeout"`
	Version         string               `toml:"version"`
}

// Env returns the SAGECOMPASS_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvSageCompassEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Logging.Merge(&overlay.Logging)
	c.Auth.Merge(&overlay.Auth)
	c.Agents.Merge(&overlay.Agents)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Logging.Finalize(loggingEnv); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Auth.Finalize(authEnv); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Agents.Finalize(); err != nil {
		return fmt.Errorf("agents: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvSageCompassShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvSageCompassVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvSageCompassEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
