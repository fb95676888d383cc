// ABOUTME: Agent registration: validate manifest, health check, mint identity, persist
// ABOUTME: Also serves on-demand endpoint health checks

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/agentlink-gateway/internal/manifest"
	"github.com/2389/agentlink-gateway/internal/metrics"
	"github.com/2389/agentlink-gateway/internal/probe"
	"github.com/2389/agentlink-gateway/internal/store"
)

const (
	registrationMessage   = "Hello. This is a connection test from agentlink."
	registrationSessionID = "registration-health-check"

	healthMessage   = "Hello. This is a connection test."
	healthSessionID = "health-check"

	// defaultSample is reported when an online agent replied with an empty body.
	defaultSample = "response received"

	DefaultRegistrationTimeout = 15 * time.Second
	DefaultHealthTimeout       = 10 * time.Second
)

// ErrEmptyManifest is returned when no manifest text was submitted.
var ErrEmptyManifest = errors.New("manifest content is required")

// ErrEmptyEndpoint is returned by HealthCheck when no endpoint was given.
var ErrEmptyEndpoint = errors.New("endpoint URL is required")

// HealthCheck is the summary of one connection test against an agent.
type HealthCheck struct {
	Online       bool   `json:"online"`
	ResponseTime int    `json:"responseTime"`
	TestResponse string `json:"testResponse,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Result is the outcome of a registration attempt. A manifest rejection is a
// Result with Success false, not an error.
type Result struct {
	Success     bool               `json:"success"`
	AgentID     string             `json:"agentId,omitempty"`
	LoginToken  string             `json:"loginToken,omitempty"`
	Manifest    *manifest.Manifest `json:"manifest,omitempty"`
	HealthCheck *HealthCheck       `json:"healthCheck,omitempty"`
	Errors      []string           `json:"errors,omitempty"`
	Warnings    []string           `json:"warnings"`
}

// Prober is the probing capability the Service needs.
type Prober interface {
	Probe(ctx context.Context, req probe.Request) probe.Outcome
}

// TokenIssuer mints login tokens for newly registered agents.
type TokenIssuer interface {
	Generate(agentID string, expiresIn time.Duration) (string, error)
}

// Config holds registration timeouts and token lifetime.
type Config struct {
	RegistrationTimeout time.Duration
	HealthTimeout       time.Duration
	TokenTTL            time.Duration // 0 issues tokens that never expire
}

// Service registers agents into the directory.
type Service struct {
	dir     store.DirectoryStore
	prober  Prober
	tokens  TokenIssuer
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a registration Service. m and logger may be nil.
func NewService(dir store.DirectoryStore, prober Prober, tokens TokenIssuer, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RegistrationTimeout <= 0 {
		cfg.RegistrationTimeout = DefaultRegistrationTimeout
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = DefaultHealthTimeout
	}
	return &Service{
		dir:     dir,
		prober:  prober,
		tokens:  tokens,
		cfg:     cfg,
		metrics: m,
		logger:  logger.With("component", "registry"),
		now:     time.Now,
	}
}

// Register validates the manifest, tests the endpoint, and stores a new
// agent. An unreachable endpoint does not block registration; the agent is
// stored offline and the health check explains why.
func (s *Service) Register(ctx context.Context, yamlText string) (*Result, error) {
	if strings.TrimSpace(yamlText) == "" {
		return nil, ErrEmptyManifest
	}

	validation := manifest.Validate(yamlText)
	if !validation.Success {
		s.metrics.ObserveRegistration("rejected")
		s.logger.Info("manifest rejected", "errors", len(validation.Errors))
		return &Result{
			Success:  false,
			Errors:   validation.Errors,
			Warnings: validation.Warnings,
		}, nil
	}
	m := validation.Manifest

	out := s.prober.Probe(ctx, probe.Request{
		Endpoint:  m.AgentSettings.Endpoint,
		Message:   registrationMessage,
		SessionID: registrationSessionID,
		Timeout:   s.cfg.RegistrationTimeout,
	})
	s.metrics.ObserveProbe(metrics.PurposeRegistration, out)
	health := summarize(out, s.cfg.RegistrationTimeout)

	agent, err := s.buildAgent(m, out)
	if err != nil {
		s.metrics.ObserveRegistration("error")
		return nil, err
	}

	token, err := s.tokens.Generate(agent.ID, s.cfg.TokenTTL)
	if err != nil {
		s.metrics.ObserveRegistration("error")
		return nil, fmt.Errorf("issuing login token: %w", err)
	}
	agent.LoginToken = token

	if err := s.dir.UpsertAgent(ctx, agent); err != nil {
		s.metrics.ObserveRegistration("error")
		return nil, fmt.Errorf("storing agent: %w", err)
	}

	s.metrics.ObserveRegistration("ok")
	s.logger.Info("agent registered",
		"agent_id", agent.ID,
		"agent_name", agent.AgentName,
		"online", health.Online,
		"probe", out.String())

	return &Result{
		Success:     true,
		AgentID:     agent.ID,
		LoginToken:  token,
		Manifest:    m,
		HealthCheck: health,
		Warnings:    validation.Warnings,
	}, nil
}

// HealthCheck sends a connection test to an arbitrary endpoint. Nothing is
// recorded in the directory.
func (s *Service) HealthCheck(ctx context.Context, endpoint string) (*HealthCheck, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, ErrEmptyEndpoint
	}

	out := s.prober.Probe(ctx, probe.Request{
		Endpoint:  endpoint,
		Message:   healthMessage,
		SessionID: healthSessionID,
		Timeout:   s.cfg.HealthTimeout,
	})
	s.metrics.ObserveProbe(metrics.PurposeHealth, out)

	s.logger.Debug("health check", "endpoint", endpoint, "probe", out.String())
	return summarize(out, s.cfg.HealthTimeout), nil
}

func (s *Service) buildAgent(m *manifest.Manifest, out probe.Outcome) (*store.Agent, error) {
	manifestYAML, err := m.Marshal()
	if err != nil {
		return nil, err
	}

	education, err := marshalOptional(m.Candidate.Education)
	if err != nil {
		return nil, fmt.Errorf("encoding education: %w", err)
	}
	workHistory, err := marshalOptional(m.Candidate.WorkHistory)
	if err != nil {
		return nil, fmt.Errorf("encoding work history: %w", err)
	}

	now := s.now().UTC()
	agent := &store.Agent{
		ID:            "agent-" + uuid.NewString(),
		AgentName:     m.AgentSettings.Name,
		OwnerName:     m.Candidate.BasicInfo.Name,
		Title:         m.Candidate.BasicInfo.Title,
		EndpointURL:   m.AgentSettings.Endpoint,
		Skills:        m.FlattenSkills(),
		MinimumSalary: m.Candidate.Preferences.MinimumAnnualSalary,
		WorkStyle:     m.Candidate.Preferences.PreferredWorkStyle,
		Bio:           m.Candidate.Bio,
		Portfolio:     m.Candidate.Portfolio,
		Region:        m.Candidate.BasicInfo.Region,
		BirthDate:     m.Candidate.BasicInfo.BirthDate,
		Nationality:   m.Candidate.BasicInfo.Nationality,
		Education:     education,
		WorkHistory:   workHistory,
		ManifestYAML:  manifestYAML,
		RegisteredAt:  now,
		IsOnline:      out.Online(),
		LastPingedAt:  &now,
	}
	if out.Online() {
		ms := out.LatencyMs()
		agent.AvgResponseMs = &ms
	}
	return agent, nil
}

func marshalOptional[T any](items []T) (json.RawMessage, error) {
	if len(items) == 0 {
		return nil, nil
	}
	return json.Marshal(items)
}

// summarize turns a probe outcome into the user-facing health check.
func summarize(out probe.Outcome, timeout time.Duration) *HealthCheck {
	switch out.Kind {
	case probe.KindOnline:
		sample := out.Sample
		if sample == "" {
			sample = defaultSample
		}
		return &HealthCheck{Online: true, ResponseTime: out.LatencyMs(), TestResponse: sample}
	case probe.KindErrorStatus:
		return &HealthCheck{
			ResponseTime: out.LatencyMs(),
			Error:        fmt.Sprintf("agent returned error (HTTP %d)", out.HTTPStatus),
		}
	case probe.KindTimeout:
		return &HealthCheck{Error: fmt.Sprintf("agent did not respond within %s", timeout)}
	default:
		return &HealthCheck{Error: "cannot connect to agent: " + out.Detail}
	}
}
