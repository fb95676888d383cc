// Package config handles configuration loading for agentlink-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML file, or a TOML file when the path ends
// in .toml, with environment variable expansion, environment overrides and
// defaults for everything except the JWT secret.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from AGENTLINK_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/agentlink/gateway.yaml
//  3. ~/.config/agentlink/gateway.yaml
//
// # Environment Variables
//
// Values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${AGENTLINK_JWT_SECRET}"
//
// A few fields can also be overridden directly, after the file is parsed:
//
//	AGENTLINK_HTTP_ADDR    server.http_addr
//	AGENTLINK_DB_PATH      database.path
//	AGENTLINK_JWT_SECRET   auth.jwt_secret
//	AGENTLINK_LOG_LEVEL    logging.level
//
// # Configuration Sections
//
//	server:
//	  http_addr: "localhost:8080"
//	  shutdown_timeout: "10s"
//
//	database:
//	  path: "./agentlink.db"
//
//	auth:
//	  jwt_secret: "${AGENTLINK_JWT_SECRET}"  # at least 32 bytes
//	  token_ttl: ""                         # empty: login tokens never expire
//
//	probes:
//	  health_timeout: "10s"        # POST /api/health
//	  registration_timeout: "15s"  # health check during registration
//	  chat_timeout: "30s"          # relay
//	  search_timeout: "5s"         # liveness fan-out per search
//	  max_concurrency: 0           # 0: one probe goroutine per agent
//
//	dedupe:
//	  ttl: "5m"
//	  max_entries: 100000
//
//	cors:
//	  allowed_origins: ["http://localhost:3000"]
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
//	mock_agent:
//	  enabled: false  # serve POST /api/mock-ep/chat
//
// Durations use Go's time.ParseDuration syntax.
package config
