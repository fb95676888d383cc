// ABOUTME: Entry point for the agentlink gateway
// ABOUTME: Serves the relay API and offers config, health, manifest and token commands

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/agentlink-gateway/internal/auth"
	"github.com/2389/agentlink-gateway/internal/config"
	"github.com/2389/agentlink-gateway/internal/gateway"
	"github.com/2389/agentlink-gateway/internal/manifest"
	"github.com/2389/agentlink-gateway/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                         _   _ _       _
   __ _  __ _  ___ _ __ | |_| (_)_ __ | | __
  / _' |/ _' |/ _ \ '_ \| __| | | '_ \| |/ /
 | (_| | (_| |  __/ | | | |_| | | | | |   <
  \__,_|\__, |\___|_| |_|\__|_|_|_| |_|_|\_\
        |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: AGENTLINK_CONFIG env var > XDG_CONFIG_HOME/agentlink/gateway.yaml > ~/.config/agentlink/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("AGENTLINK_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "agentlink", "gateway.yaml")
}

// getDataPath returns the path to the agentlink data directory.
// Priority: XDG_DATA_HOME/agentlink > ~/.local/share/agentlink
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "agentlink")
}

func usage() {
	fmt.Println("Usage: agentlink-gateway <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                  Start the gateway server")
	fmt.Println("  init                   Create a new config file interactively")
	fmt.Println("  health                 Check gateway health")
	fmt.Println("  validate FILE          Validate an agent manifest without registering it")
	fmt.Println("  token AGENT_ID         Issue a new login token for a registered agent")
	fmt.Println("  version                Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "validate":
		err = runValidate(os.Args[2:])
	case "token":
		err = runToken(ctx, os.Args[2:])
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:   %s\n", cfg.Metrics.Path)
	}
	if cfg.MockAgent.Enabled {
		yellow.Print("    ▶ ")
		fmt.Println("Mock agent at /api/mock-ep/chat")
	}
	fmt.Println()

	logger.Info("starting agentlink-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"version", version,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health/ready", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runValidate checks a manifest file the way registration does, without
// probing the endpoint or touching the database.
func runValidate(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: agentlink-gateway validate FILE")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}

	res := manifest.Validate(string(data))

	yellow := color.New(color.FgYellow)
	for _, w := range res.Warnings {
		yellow.Printf("  ! %s\n", w)
	}

	if !res.Success {
		red := color.New(color.FgRed)
		for _, e := range res.Errors {
			red.Printf("  ✗ %s\n", e)
		}
		return fmt.Errorf("manifest has %d error(s)", len(res.Errors))
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ %s (%s)\n", res.Manifest.AgentSettings.Name, res.Manifest.AgentSettings.Endpoint)
	fmt.Printf("    skills: %s\n", strings.Join(res.Manifest.FlattenSkills(), ", "))
	return nil
}

// runToken replaces an agent's login token. The previous token stops
// working immediately because lookups compare against the stored value.
func runToken(ctx context.Context, args []string) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return errors.New("usage: agentlink-gateway token AGENT_ID")
	}
	agentID := strings.TrimSpace(args[0])

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	agent, err := s.GetAgentByID(ctx, agentID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no agent with id %s", agentID)
	}
	if err != nil {
		return fmt.Errorf("looking up agent: %w", err)
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}

	token, err := verifier.Generate(agent.ID, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	agent.LoginToken = token
	if err := s.UpsertAgent(ctx, agent); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ New login token for %s (%s)\n", agent.AgentName, agent.ID)
	if cfg.Auth.TokenTTL > 0 {
		fmt.Printf("    expires %s\n", time.Now().Add(cfg.Auth.TokenTTL).UTC().Format("Jan 02, 2006"))
	}
	fmt.Println()
	fmt.Println(token)
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("agentlink-gateway configuration setup")
	fmt.Println("=====================================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDbPath := filepath.Join(getDataPath(), "agentlink.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")
	origins := prompt(reader, "Allowed CORS origins (comma separated, empty for none)", "")

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	fmt.Println("\n--- Probe Configuration ---")
	chatTimeout := prompt(reader, "Chat relay timeout", "30s")
	searchTimeout := prompt(reader, "Search liveness timeout", "5s")

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	enableMock := isYes(prompt(reader, "Enable built-in mock agent?", "no"))

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)

	var cfg strings.Builder
	cfg.WriteString("# agentlink-gateway configuration\n")
	cfg.WriteString("# Generated by agentlink-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", httpAddr))
	cfg.WriteString("  shutdown_timeout: \"10s\"\n\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n\n", dbPath))

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  jwt_secret: %q\n\n", jwtSecret))

	cfg.WriteString("probes:\n")
	cfg.WriteString("  health_timeout: \"10s\"\n")
	cfg.WriteString("  registration_timeout: \"15s\"\n")
	cfg.WriteString(fmt.Sprintf("  chat_timeout: %q\n", chatTimeout))
	cfg.WriteString(fmt.Sprintf("  search_timeout: %q\n\n", searchTimeout))

	cfg.WriteString("cors:\n")
	cfg.WriteString("  allowed_origins:")
	var originList []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			originList = append(originList, o)
		}
	}
	if len(originList) == 0 {
		cfg.WriteString(" []\n")
	} else {
		cfg.WriteString("\n")
		for _, o := range originList {
			cfg.WriteString(fmt.Sprintf("    - %q\n", o))
		}
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n\n", logFormat))

	cfg.WriteString("metrics:\n")
	cfg.WriteString("  enabled: false\n")
	cfg.WriteString("  path: \"/metrics\"\n\n")

	cfg.WriteString("mock_agent:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", enableMock))

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// The file holds the JWT secret.
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  agentlink-gateway serve\n")

	return nil
}

func isYes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
