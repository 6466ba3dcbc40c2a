// Package common provides shared utilities for keyrelay
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for keyrelay
type Config struct {
	Environment string         `toml:"environment"`
	Server      ServerConfig   `toml:"server"`
	Storage     StorageConfig  `toml:"storage"`
	Security    SecurityConfig `toml:"security"`
	Proxy       ProxyConfig    `toml:"proxy"`
	Logging     LoggingConfig  `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds storage configuration for the embedded database.
type StorageConfig struct {
	Path string `toml:"path"`
}

// SecurityConfig holds admin authentication and secret encryption settings.
type SecurityConfig struct {
	// AdminToken guards every /api/* CRUD surface. Required outside development.
	AdminToken string `toml:"admin_token"`

	// JWTSecret signs dashboard session tokens issued by /api/auth/login.
	JWTSecret string `toml:"jwt_secret"`

	// SessionExpiry is a duration string for session token lifetime, default "24h".
	SessionExpiry string `toml:"session_expiry"`

	// EncryptionKey is a base64-encoded 32-byte AES key for secrets at rest.
	// If empty, EncryptionPassphrase + EncryptionSalt derive one via scrypt.
	EncryptionKey        string `toml:"encryption_key"`
	EncryptionPassphrase string `toml:"encryption_passphrase"`
	EncryptionSalt       string `toml:"encryption_salt"`

	// RateLimit is the per-client request budget per hour window.
	RateLimit int `toml:"rate_limit"`
}

// GetSessionExpiry parses and returns the session token expiry duration.
func (c *SecurityConfig) GetSessionExpiry() time.Duration {
	d, err := time.ParseDuration(c.SessionExpiry)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// ProxyConfig holds outbound proxying configuration.
type ProxyConfig struct {
	// UpstreamTimeout applies to proxied calls and OAuth token exchanges.
	UpstreamTimeout string `toml:"upstream_timeout"`
}

// GetUpstreamTimeout parses and returns the upstream timeout duration.
func (c *ProxyConfig) GetUpstreamTimeout() time.Duration {
	d, err := time.ParseDuration(c.UpstreamTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Path: "data/keyrelay",
		},
		Security: SecurityConfig{
			JWTSecret:     "dev-jwt-secret-change-in-production",
			SessionExpiry: "24h",
			RateLimit:     200,
		},
		Proxy: ProxyConfig{
			UpstreamTimeout: "30s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// Apply environment overrides
	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("KEYRELAY_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("KEYRELAY_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("KEYRELAY_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("KEYRELAY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("KEYRELAY_DATA_PATH"); path != "" {
		config.Storage.Path = path
	}

	if v := os.Getenv("KEYRELAY_ADMIN_TOKEN"); v != "" {
		config.Security.AdminToken = v
	}
	if v := os.Getenv("KEYRELAY_JWT_SECRET"); v != "" {
		config.Security.JWTSecret = v
	}
	if v := os.Getenv("KEYRELAY_ENCRYPTION_KEY"); v != "" {
		config.Security.EncryptionKey = v
	}
	if v := os.Getenv("KEYRELAY_ENCRYPTION_PASSPHRASE"); v != "" {
		config.Security.EncryptionPassphrase = v
	}
	if v := os.Getenv("KEYRELAY_ENCRYPTION_SALT"); v != "" {
		config.Security.EncryptionSalt = v
	}
	if v := os.Getenv("KEYRELAY_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Security.RateLimit = n
		}
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ValidateRequired returns the names of required settings that are missing
// or still at insecure defaults. Empty means the config is production-ready.
func (c *Config) ValidateRequired() []string {
	var missing []string

	if c.Security.AdminToken == "" {
		missing = append(missing, "security.admin_token")
	}
	if c.Security.JWTSecret == "" || c.Security.JWTSecret == "dev-jwt-secret-change-in-production" {
		missing = append(missing, "security.jwt_secret")
	}
	if c.Security.EncryptionKey == "" && c.Security.EncryptionPassphrase == "" {
		missing = append(missing, "security.encryption_key")
	}
	return missing
}
