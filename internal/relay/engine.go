// ABOUTME: Relay engine that delivers one message to one agent endpoint
// ABOUTME: Records the outbound message first, then the reply or a system notice

package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/agentlink-gateway/internal/metrics"
	"github.com/2389/agentlink-gateway/internal/probe"
	"github.com/2389/agentlink-gateway/internal/store"
)

// DefaultTimeout bounds one relay when the engine is built with a zero timeout.
const DefaultTimeout = 30 * time.Second

// Prober delivers a message to an endpoint and classifies the outcome.
type Prober interface {
	Probe(ctx context.Context, req probe.Request) probe.Outcome
}

// Request is one message to relay.
type Request struct {
	AgentID      string
	SessionID    string
	SenderRole   store.Role // company when empty
	Message      string
	EndpointURL  string
	CompanyLabel string // used when the message opens a new session
}

// Engine relays messages and writes the session transcript.
type Engine struct {
	log     store.SessionLogStore
	prober  Prober
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an Engine. m and logger may be nil.
func New(log store.SessionLogStore, prober Prober, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		log:     log,
		prober:  prober,
		timeout: timeout,
		metrics: m,
		logger:  logger.With("component", "relay"),
	}
}

// Relay records the outbound message, delivers it, records the result and
// returns the agent's reply. Delivery failures are *RelayError values; a
// failure to record the outbound message aborts before delivery.
//
// Messages sent with the agent role are replays and are delivered without
// being recorded.
func (e *Engine) Relay(ctx context.Context, req Request) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}
	role := req.SenderRole
	if role == "" {
		role = store.RoleCompany
	}

	if role != store.RoleAgent {
		outbound := &store.ChatMessage{
			ID:           uuid.New().String(),
			SessionID:    req.SessionID,
			AgentID:      req.AgentID,
			Role:         role,
			Content:      req.Message,
			CompanyLabel: req.CompanyLabel,
			CreatedAt:    time.Now().UTC(),
		}
		if err := e.log.AppendMessage(ctx, outbound); err != nil {
			e.metrics.ObserveRelay("log_error")
			return "", fmt.Errorf("failed to record message: %w", err)
		}
		e.logger.Debug("outbound message recorded",
			"agent_id", req.AgentID,
			"session_id", req.SessionID,
			"message_id", outbound.ID,
			"role", role)
	}

	out := e.prober.Probe(ctx, probe.Request{
		Endpoint:  req.EndpointURL,
		Message:   req.Message,
		SessionID: req.SessionID,
		Timeout:   e.timeout,
	})
	e.metrics.ObserveProbe(metrics.PurposeChat, out)

	// The call has resolved; the transcript should be completed even if the
	// requester has gone away.
	logCtx := context.WithoutCancel(ctx)

	switch out.Kind {
	case probe.KindOnline:
		e.appendResult(logCtx, req, store.RoleAgent, out.Sample)
		e.metrics.ObserveRelay("ok")
		e.logger.Info("message relayed",
			"agent_id", req.AgentID,
			"session_id", req.SessionID,
			"latency_ms", out.LatencyMs())
		return out.Sample, nil

	case probe.KindErrorStatus:
		e.appendResult(logCtx, req, store.RoleSystem, remoteErrorNotice(out.HTTPStatus))
		e.metrics.ObserveRelay(string(KindRemoteError))
		e.logger.Warn("agent returned error status",
			"agent_id", req.AgentID,
			"session_id", req.SessionID,
			"status", out.HTTPStatus)
		return "", &RelayError{Kind: KindRemoteError, RemoteStatus: out.HTTPStatus}

	case probe.KindTimeout:
		e.metrics.ObserveRelay(string(KindTimeout))
		e.logger.Warn("agent timed out",
			"agent_id", req.AgentID,
			"session_id", req.SessionID,
			"timeout", e.timeout)
		return "", &RelayError{Kind: KindTimeout, Timeout: e.timeout}

	default:
		e.metrics.ObserveRelay(string(KindUnreachable))
		e.logger.Warn("agent unreachable",
			"agent_id", req.AgentID,
			"session_id", req.SessionID,
			"detail", out.Detail)
		return "", &RelayError{Kind: KindUnreachable, Detail: out.Detail}
	}
}

// appendResult records the reply or notice. A failure here is logged only;
// the caller still receives the classified outcome.
func (e *Engine) appendResult(ctx context.Context, req Request, role store.Role, content string) {
	msg := &store.ChatMessage{
		ID:        uuid.New().String(),
		SessionID: req.SessionID,
		AgentID:   req.AgentID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.log.AppendMessage(ctx, msg); err != nil {
		e.logger.Error("failed to record relay result",
			"agent_id", req.AgentID,
			"session_id", req.SessionID,
			"role", role,
			"error", err)
	}
}

// AppendTalentMessage records a message written by the agent's owner
// directly into a session, without contacting the agent.
func (e *Engine) AppendTalentMessage(ctx context.Context, agentID, sessionID, content string) (*store.ChatMessage, error) {
	if agentID == "" || sessionID == "" || strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: agent, session and content are required", ErrInvalidRequest)
	}

	msg := &store.ChatMessage{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		AgentID:   agentID,
		Role:      store.RoleTalent,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.log.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to record message: %w", err)
	}
	return msg, nil
}

func validate(req Request) error {
	switch {
	case req.AgentID == "":
		return fmt.Errorf("%w: agent id is required", ErrInvalidRequest)
	case req.SessionID == "":
		return fmt.Errorf("%w: session id is required", ErrInvalidRequest)
	case strings.TrimSpace(req.Message) == "":
		return fmt.Errorf("%w: message is required", ErrInvalidRequest)
	case req.EndpointURL == "":
		return fmt.Errorf("%w: endpoint is required", ErrInvalidRequest)
	case req.SenderRole != "" && !req.SenderRole.Valid():
		return fmt.Errorf("%w: unknown sender role %q", ErrInvalidRequest, req.SenderRole)
	}
	return nil
}
