// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env expansion and overrides, defaults and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, "gateway.yaml", `
server:
  http_addr: "0.0.0.0:9090"
  shutdown_timeout: "3s"

database:
  path: "./test.db"

auth:
  jwt_secret: "`+testSecret+`"
  token_ttl: "720h"

probes:
  health_timeout: "2s"
  registration_timeout: "3s"
  chat_timeout: "4s"
  search_timeout: "1s"
  max_concurrency: 16

dedupe:
  ttl: "1m"
  max_entries: 50

cors:
  allowed_origins:
    - "http://localhost:3000"
    - "https://app.example.com"

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/internal/metrics"

mock_agent:
  enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:9090" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:9090")
	}
	if cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 3s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Auth.TokenTTL != 720*time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want 720h", cfg.Auth.TokenTTL)
	}

	probes := map[string]struct{ got, want time.Duration }{
		"health":       {cfg.Probes.HealthTimeout, 2 * time.Second},
		"registration": {cfg.Probes.RegistrationTimeout, 3 * time.Second},
		"chat":         {cfg.Probes.ChatTimeout, 4 * time.Second},
		"search":       {cfg.Probes.SearchTimeout, time.Second},
	}
	for name, p := range probes {
		if p.got != p.want {
			t.Errorf("%s timeout = %v, want %v", name, p.got, p.want)
		}
	}
	if cfg.Probes.MaxConcurrency != 16 {
		t.Errorf("Probes.MaxConcurrency = %d, want 16", cfg.Probes.MaxConcurrency)
	}

	if cfg.Dedupe.TTL != time.Minute || cfg.Dedupe.MaxEntries != 50 {
		t.Errorf("Dedupe = %+v, want ttl 1m and 50 entries", cfg.Dedupe)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://app.example.com" {
		t.Errorf("CORS.AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/internal/metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if !cfg.MockAgent.Enabled {
		t.Error("MockAgent.Enabled = false, want true")
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "gateway.yaml", `
auth:
  jwt_secret: "`+testSecret+`"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "localhost:8080" {
		t.Errorf("Server.HTTPAddr = %q, want localhost:8080", cfg.Server.HTTPAddr)
	}
	if cfg.Database.Path != "./agentlink.db" {
		t.Errorf("Database.Path = %q, want ./agentlink.db", cfg.Database.Path)
	}
	if cfg.Probes.HealthTimeout != 10*time.Second {
		t.Errorf("HealthTimeout = %v, want 10s", cfg.Probes.HealthTimeout)
	}
	if cfg.Probes.RegistrationTimeout != 15*time.Second {
		t.Errorf("RegistrationTimeout = %v, want 15s", cfg.Probes.RegistrationTimeout)
	}
	if cfg.Probes.ChatTimeout != 30*time.Second {
		t.Errorf("ChatTimeout = %v, want 30s", cfg.Probes.ChatTimeout)
	}
	if cfg.Probes.SearchTimeout != 5*time.Second {
		t.Errorf("SearchTimeout = %v, want 5s", cfg.Probes.SearchTimeout)
	}
	if cfg.Probes.MaxConcurrency != 0 {
		t.Errorf("MaxConcurrency = %d, want 0 (unbounded)", cfg.Probes.MaxConcurrency)
	}
	if cfg.Auth.TokenTTL != 0 {
		t.Errorf("TokenTTL = %v, want 0 (no expiry)", cfg.Auth.TokenTTL)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want info/text", cfg.Logging)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want /metrics", cfg.Metrics.Path)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "gateway.toml", `
[server]
http_addr = "127.0.0.1:7000"

[auth]
jwt_secret = "`+testSecret+`"

[probes]
search_timeout = "750ms"
max_concurrency = 4

[cors]
allowed_origins = ["http://localhost:5173"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:7000" {
		t.Errorf("Server.HTTPAddr = %q, want 127.0.0.1:7000", cfg.Server.HTTPAddr)
	}
	if cfg.Probes.SearchTimeout != 750*time.Millisecond {
		t.Errorf("SearchTimeout = %v, want 750ms", cfg.Probes.SearchTimeout)
	}
	if cfg.Probes.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want 4", cfg.Probes.MaxConcurrency)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 {
		t.Errorf("CORS.AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_AGENTLINK_SECRET", testSecret)
	t.Setenv("TEST_AGENTLINK_DB", "/tmp/expanded.db")

	path := writeConfig(t, "gateway.yaml", `
database:
  path: "${TEST_AGENTLINK_DB}"
auth:
  jwt_secret: "${TEST_AGENTLINK_SECRET}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.JWTSecret != testSecret {
		t.Errorf("Auth.JWTSecret = %q, want expanded value", cfg.Auth.JWTSecret)
	}
	if cfg.Database.Path != "/tmp/expanded.db" {
		t.Errorf("Database.Path = %q, want /tmp/expanded.db", cfg.Database.Path)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AGENTLINK_HTTP_ADDR", ":9999")
	t.Setenv("AGENTLINK_DB_PATH", "/var/lib/agentlink/override.db")
	t.Setenv("AGENTLINK_JWT_SECRET", "override-secret-override-secret-!")
	t.Setenv("AGENTLINK_LOG_LEVEL", "warn")

	path := writeConfig(t, "gateway.yaml", `
server:
  http_addr: "localhost:8080"
database:
  path: "./file.db"
auth:
  jwt_secret: "`+testSecret+`"
logging:
  level: "debug"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != ":9999" {
		t.Errorf("Server.HTTPAddr = %q, want :9999", cfg.Server.HTTPAddr)
	}
	if cfg.Database.Path != "/var/lib/agentlink/override.db" {
		t.Errorf("Database.Path = %q, want override", cfg.Database.Path)
	}
	if cfg.Auth.JWTSecret != "override-secret-override-secret-!" {
		t.Errorf("Auth.JWTSecret = %q, want override", cfg.Auth.JWTSecret)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoad_SecretFromEnvOnly(t *testing.T) {
	t.Setenv("AGENTLINK_JWT_SECRET", testSecret)

	cfg, err := Load(writeConfig(t, "gateway.yaml", "logging:\n  level: info\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != testSecret {
		t.Errorf("Auth.JWTSecret = %q, want env value", cfg.Auth.JWTSecret)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
	if !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("error = %v, want reading config file", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "gateway.yaml", "server: [unclosed\n"))
	if err == nil || !strings.Contains(err.Error(), "parsing config file") {
		t.Errorf("Load() error = %v, want parsing config file", err)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	_, err := Load(writeConfig(t, "gateway.toml", "[server\nhttp_addr = 1\n"))
	if err == nil || !strings.Contains(err.Error(), "parsing config file") {
		t.Errorf("Load() error = %v, want parsing config file", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := Load(writeConfig(t, "gateway.yaml", `
auth:
  jwt_secret: "`+testSecret+`"
probes:
  chat_timeout: "thirty seconds"
`))
	if err == nil {
		t.Fatal("Load() should fail for an invalid duration")
	}
	if !strings.Contains(err.Error(), "probes.chat_timeout") {
		t.Errorf("error = %v, want it to name probes.chat_timeout", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }, "auth.jwt_secret is required"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "at least 32 bytes"},
		{"negative token ttl", func(c *Config) { c.Auth.TokenTTL = -time.Hour }, "auth.token_ttl"},
		{"negative timeout", func(c *Config) { c.Probes.ChatTimeout = -time.Second }, "probes.chat_timeout must be positive"},
		{"negative concurrency", func(c *Config) { c.Probes.MaxConcurrency = -1 }, "probes.max_concurrency"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad metrics path", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Path = "metrics" }, "metrics.path"},
		{"empty addr", func(c *Config) { c.Server.HTTPAddr = "" }, "server.http_addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Auth.JWTSecret = testSecret
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_EXPAND_A", "alpha")

	tests := []struct {
		input string
		want  string
	}{
		{"plain", "plain"},
		{"${TEST_EXPAND_A}", "alpha"},
		{"pre-${TEST_EXPAND_A}-post", "pre-alpha-post"},
		{"${TEST_EXPAND_UNSET_VAR}", ""},
		{"$TEST_EXPAND_A", "$TEST_EXPAND_A"},
	}

	for _, tt := range tests {
		if got := expandEnvVars(tt.input); got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
