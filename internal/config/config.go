// ABOUTME: Configuration loading and parsing for agentlink-gateway
// ABOUTME: Supports YAML or TOML files with env expansion, env overrides and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// minJWTSecretLength matches the HS256 secret floor enforced by the auth package.
const minJWTSecretLength = 32

// Config represents the complete agentlink-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Probes    ProbesConfig    `yaml:"probes" toml:"probes"`
	Dedupe    DedupeConfig    `yaml:"dedupe" toml:"dedupe"`
	CORS      CORSConfig      `yaml:"cors" toml:"cors"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
	MockAgent MockAgentConfig `yaml:"mock_agent" toml:"mock_agent"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr" toml:"http_addr" env:"AGENTLINK_HTTP_ADDR"`
	ShutdownTimeout time.Duration `yaml:"-" toml:"-"`

	ShutdownTimeoutRaw string `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path" env:"AGENTLINK_DB_PATH"`
}

// AuthConfig holds login token configuration
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" toml:"jwt_secret" env:"AGENTLINK_JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"-" toml:"-"` // zero means login tokens never expire

	TokenTTLRaw string `yaml:"token_ttl" toml:"token_ttl"`
}

// ProbesConfig holds per-purpose probe deadlines and fan-out limits
type ProbesConfig struct {
	HealthTimeout       time.Duration `yaml:"-" toml:"-"`
	RegistrationTimeout time.Duration `yaml:"-" toml:"-"`
	ChatTimeout         time.Duration `yaml:"-" toml:"-"`
	SearchTimeout       time.Duration `yaml:"-" toml:"-"`
	MaxConcurrency      int           `yaml:"max_concurrency" toml:"max_concurrency"` // 0 means unbounded

	// Raw string values for unmarshaling
	HealthTimeoutRaw       string `yaml:"health_timeout" toml:"health_timeout"`
	RegistrationTimeoutRaw string `yaml:"registration_timeout" toml:"registration_timeout"`
	ChatTimeoutRaw         string `yaml:"chat_timeout" toml:"chat_timeout"`
	SearchTimeoutRaw       string `yaml:"search_timeout" toml:"search_timeout"`
}

// DedupeConfig holds duplicate chat submission settings
type DedupeConfig struct {
	TTL        time.Duration `yaml:"-" toml:"-"`
	MaxEntries int           `yaml:"max_entries" toml:"max_entries"`

	TTLRaw string `yaml:"ttl" toml:"ttl"`
}

// CORSConfig lists browser origins allowed to call the API
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" env:"AGENTLINK_LOG_LEVEL"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// MockAgentConfig controls the built-in mock agent endpoint
type MockAgentConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
}

// Default returns a configuration with every default applied and no secret.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, anything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded, then
// AGENTLINK_* variables override individual fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "localhost:8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Database.Path == "" {
		c.Database.Path = "./agentlink.db"
	}
	if c.Probes.HealthTimeout == 0 {
		c.Probes.HealthTimeout = 10 * time.Second
	}
	if c.Probes.RegistrationTimeout == 0 {
		c.Probes.RegistrationTimeout = 15 * time.Second
	}
	if c.Probes.ChatTimeout == 0 {
		c.Probes.ChatTimeout = 30 * time.Second
	}
	if c.Probes.SearchTimeout == 0 {
		c.Probes.SearchTimeout = 5 * time.Second
	}
	if c.Dedupe.TTL == 0 {
		c.Dedupe.TTL = 5 * time.Minute
	}
	if c.Dedupe.MaxEntries == 0 {
		c.Dedupe.MaxEntries = 100_000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (or set AGENTLINK_JWT_SECRET)")
	}
	if len(c.Auth.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", minJWTSecretLength)
	}
	if c.Auth.TokenTTL < 0 {
		return fmt.Errorf("auth.token_ttl must not be negative")
	}

	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"server.shutdown_timeout", c.Server.ShutdownTimeout},
		{"probes.health_timeout", c.Probes.HealthTimeout},
		{"probes.registration_timeout", c.Probes.RegistrationTimeout},
		{"probes.chat_timeout", c.Probes.ChatTimeout},
		{"probes.search_timeout", c.Probes.SearchTimeout},
		{"dedupe.ttl", c.Dedupe.TTL},
	} {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}

	if c.Probes.MaxConcurrency < 0 {
		return fmt.Errorf("probes.max_concurrency must not be negative")
	}
	if c.Dedupe.MaxEntries < 0 {
		return fmt.Errorf("dedupe.max_entries must not be negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeoutRaw, &cfg.Server.ShutdownTimeout},
		{"auth.token_ttl", cfg.Auth.TokenTTLRaw, &cfg.Auth.TokenTTL},
		{"probes.health_timeout", cfg.Probes.HealthTimeoutRaw, &cfg.Probes.HealthTimeout},
		{"probes.registration_timeout", cfg.Probes.RegistrationTimeoutRaw, &cfg.Probes.RegistrationTimeout},
		{"probes.chat_timeout", cfg.Probes.ChatTimeoutRaw, &cfg.Probes.ChatTimeout},
		{"probes.search_timeout", cfg.Probes.SearchTimeoutRaw, &cfg.Probes.SearchTimeout},
		{"dedupe.ttl", cfg.Dedupe.TTLRaw, &cfg.Dedupe.TTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
