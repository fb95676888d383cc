// ABOUTME: HTTP API handlers for registration, search, chat relay and talent history
// ABOUTME: Requests are decoded as JSON and checked with go-playground/validator

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/2389/agentlink-gateway/internal/auth"
	"github.com/2389/agentlink-gateway/internal/dedupe"
	"github.com/2389/agentlink-gateway/internal/registry"
	"github.com/2389/agentlink-gateway/internal/relay"
	"github.com/2389/agentlink-gateway/internal/search"
	"github.com/2389/agentlink-gateway/internal/store"
)

// maxRequestBytes caps JSON request bodies. Manifests are the largest payload.
const maxRequestBytes = 1 << 20

// RegisterAgentRequest is the JSON request body for POST /api/register-agent.
type RegisterAgentRequest struct {
	YAMLContent string `json:"yamlContent" validate:"required"`
}

// HealthCheckRequest is the JSON request body for POST /api/health.
type HealthCheckRequest struct {
	EndpointURL string `json:"endpointUrl" validate:"required,url"`
}

// SearchAgentsRequest is the JSON request body for POST /api/search-agents.
type SearchAgentsRequest struct {
	SkillFilter []string `json:"skillFilter" validate:"max=50,dive,max=100"`
	MaxSalary   *int     `json:"maxSalary" validate:"omitempty,gte=0"`
	OnlineOnly  bool     `json:"onlineOnly"`
	Query       string   `json:"query" validate:"max=500"`
}

// ChatRequest is the JSON request body for POST /api/chat.
type ChatRequest struct {
	AgentID         string `json:"agentId" validate:"required"`
	SessionID       string `json:"sessionId" validate:"required,max=200"`
	Message         string `json:"message" validate:"required"`
	ClientMessageID string `json:"clientMessageId,omitempty" validate:"omitempty,max=200"`
	CompanyLabel    string `json:"companyLabel,omitempty" validate:"omitempty,max=200"`
}

// ChatResponse is the JSON response for a relayed chat message.
type ChatResponse struct {
	Response string `json:"response"`
}

// RelayErrorResponse is returned when the agent could not produce a reply.
type RelayErrorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

// DirectMessageRequest is the JSON request body for POST /api/chat/direct.
type DirectMessageRequest struct {
	SessionID string `json:"sessionId" validate:"required,max=200"`
	Content   string `json:"content" validate:"required"`
}

// MessageResponse is one transcript entry.
type MessageResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

// SessionResponse is a full session transcript.
type SessionResponse struct {
	SessionID     string            `json:"sessionId"`
	CompanyLabel  string            `json:"companyLabel"`
	StartedAt     string            `json:"startedAt"`
	LastMessageAt string            `json:"lastMessageAt"`
	Messages      []MessageResponse `json:"messages"`
}

// SessionSummary is one row of the session list.
type SessionSummary struct {
	SessionID     string  `json:"sessionId"`
	CompanyLabel  string  `json:"companyLabel"`
	StartedAt     string  `json:"startedAt"`
	LastMessageAt string  `json:"lastMessageAt"`
	MessageCount  int     `json:"messageCount"`
	LastMessage   *string `json:"lastMessage"`
}

// newValidator creates a validator that reports JSON field names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeRequest decodes a JSON body into dst and validates it. The returned
// error message is safe to show to clients.
func (g *Gateway) decodeRequest(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	if err := g.validate.Struct(dst); err != nil {
		return validationMessage(err)
	}
	return nil
}

// validationMessage turns the first validator failure into a readable error.
func validationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "url":
		return fmt.Errorf("%s must be an absolute URL", fe.Field())
	case "max":
		return fmt.Errorf("%s is too long", fe.Field())
	case "gte":
		return fmt.Errorf("%s must not be negative", fe.Field())
	default:
		return fmt.Errorf("%s is invalid", fe.Field())
	}
}

func (g *Gateway) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Debug("failed to write response", "error", err)
	}
}

func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.sendJSON(w, status, map[string]string{"error": message})
}

// handleRegisterAgent handles POST /api/register-agent.
// A rejected manifest answers 422 with the validation errors and warnings.
func (g *Gateway) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req RegisterAgentRequest
	if err := g.decodeRequest(w, r, &req); err != nil {
		g.sendJSON(w, http.StatusBadRequest, registry.Result{Errors: []string{err.Error()}, Warnings: []string{}})
		return
	}

	res, err := g.registry.Register(r.Context(), req.YAMLContent)
	switch {
	case errors.Is(err, registry.ErrEmptyManifest):
		g.sendJSON(w, http.StatusBadRequest, registry.Result{Errors: []string{err.Error()}, Warnings: []string{}})
		return
	case err != nil:
		g.logger.Error("registration failed", "error", err)
		g.sendJSON(w, http.StatusInternalServerError, registry.Result{Errors: []string{"server error"}, Warnings: []string{}})
		return
	}

	if !res.Success {
		g.sendJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	g.sendJSON(w, http.StatusOK, res)
}

// handleHealthCheck handles POST /api/health.
func (g *Gateway) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	var req HealthCheckRequest
	if err := g.decodeRequest(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	hc, err := g.registry.HealthCheck(r.Context(), req.EndpointURL)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	g.sendJSON(w, http.StatusOK, hc)
}

// handleSearchAgents handles POST /api/search-agents.
func (g *Gateway) handleSearchAgents(w http.ResponseWriter, r *http.Request) {
	var req SearchAgentsRequest
	if err := g.decodeRequest(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := g.search.Search(r.Context(), search.Query{
		SkillFilter: req.SkillFilter,
		MaxSalary:   req.MaxSalary,
		OnlineOnly:  req.OnlineOnly,
		Text:        req.Query,
	})
	if err != nil {
		g.logger.Error("search failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "search failed")
		return
	}
	g.sendJSON(w, http.StatusOK, res)
}

// handleChat handles POST /api/chat.
//
// The endpoint comes from the directory, never from the client. A request
// carrying a clientMessageId already seen for the same agent and session is
// rejected with 409. The claim is released when nothing was recorded, so the
// client may retry.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := g.decodeRequest(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	agent, err := g.store.GetAgentByID(r.Context(), req.AgentID)
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "agent not found")
		return
	}
	if err != nil {
		g.logger.Error("agent lookup failed", "agent_id", req.AgentID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var dedupeKey string
	if req.ClientMessageID != "" {
		dedupeKey = dedupe.Key(agent.ID, req.SessionID, req.ClientMessageID)
		if !g.dedupe.Claim(dedupeKey) {
			g.metrics.ObserveDuplicate()
			g.sendJSONError(w, http.StatusConflict, "duplicate message")
			return
		}
	}

	reply, err := g.relay.Relay(r.Context(), relay.Request{
		AgentID:      agent.ID,
		SessionID:    req.SessionID,
		SenderRole:   store.RoleCompany,
		Message:      req.Message,
		EndpointURL:  agent.EndpointURL,
		CompanyLabel: req.CompanyLabel,
	})
	if err == nil {
		g.sendJSON(w, http.StatusOK, ChatResponse{Response: reply})
		return
	}

	// The outbound message was recorded, so the claim stands.
	var relayErr *relay.RelayError
	if errors.As(err, &relayErr) {
		g.sendJSON(w, relayErr.HTTPStatus(), RelayErrorResponse{
			Error:  relayErr.UserMessage(),
			Kind:   string(relayErr.Kind),
			Detail: relayErr.Detail,
		})
		return
	}

	if dedupeKey != "" {
		g.dedupe.Release(dedupeKey)
	}
	switch {
	case errors.Is(err, relay.ErrInvalidRequest):
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrSessionConflict):
		g.sendJSONError(w, http.StatusConflict, "session belongs to another agent")
	default:
		g.logger.Error("relay failed", "agent_id", agent.ID, "session_id", req.SessionID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to record message")
	}
}

// handleDirectMessage handles POST /api/chat/direct. The authenticated talent
// posts into one of their own agent's sessions.
func (g *Gateway) handleDirectMessage(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	var req DirectMessageRequest
	if err := g.decodeRequest(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := g.relay.AppendTalentMessage(r.Context(), authCtx.AgentID, req.SessionID, req.Content)
	switch {
	case err == nil:
	case errors.Is(err, relay.ErrInvalidRequest):
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrSessionConflict):
		g.sendJSONError(w, http.StatusConflict, "session belongs to another agent")
		return
	default:
		g.logger.Error("direct message failed", "agent_id", authCtx.AgentID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to record message")
		return
	}

	g.sendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": toMessageResponse(msg),
	})
}

// handleChatHistory handles GET /api/chat-history[?session_id=X]. Without a
// session ID it lists the talent's sessions; with one it returns the transcript.
func (g *Gateway) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	agent, err := g.store.GetAgentByID(r.Context(), authCtx.AgentID)
	if err != nil {
		g.logger.Error("agent lookup failed", "agent_id", authCtx.AgentID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	owner, err := g.profiles.Build(agent, true)
	if err != nil {
		g.logger.Error("profile build failed", "agent_id", agent.ID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if sessionID := r.URL.Query().Get("session_id"); sessionID != "" {
		session, err := g.store.GetSession(r.Context(), agent.ID, sessionID)
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "session not found")
			return
		}
		if err != nil {
			g.logger.Error("session lookup failed", "session_id", sessionID, "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		g.sendJSON(w, http.StatusOK, map[string]any{
			"agent":   owner,
			"session": toSessionResponse(session),
		})
		return
	}

	sessions, err := g.store.ListSessions(r.Context(), agent.ID)
	if err != nil {
		g.logger.Error("session list failed", "agent_id", agent.ID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, toSessionSummary(s))
	}
	g.sendJSON(w, http.StatusOK, map[string]any{
		"agent":         owner,
		"sessions":      summaries,
		"totalSessions": len(summaries),
	})
}

// handleAgentProfile handles GET /api/agents/{id}. The owning talent sees
// private fields as well.
func (g *Gateway) handleAgentProfile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	agent, err := g.store.GetAgentByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "agent not found")
		return
	}
	if err != nil {
		g.logger.Error("agent lookup failed", "agent_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	owner := auth.FromContext(r.Context()).Owns(agent.ID)
	p, err := g.profiles.Build(agent, owner)
	if err != nil {
		g.logger.Error("profile build failed", "agent_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	g.sendJSON(w, http.StatusOK, p)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func toMessageResponse(m *store.ChatMessage) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		Role:      string(m.Role),
		Content:   m.Content,
		CreatedAt: formatTime(m.CreatedAt),
	}
}

func toSessionResponse(s *store.ChatSession) SessionResponse {
	msgs := make([]MessageResponse, 0, len(s.Messages))
	for _, m := range s.Messages {
		msgs = append(msgs, toMessageResponse(m))
	}
	return SessionResponse{
		SessionID:     s.SessionID,
		CompanyLabel:  s.CompanyLabel,
		StartedAt:     formatTime(s.StartedAt),
		LastMessageAt: formatTime(s.LastMessageAt),
		Messages:      msgs,
	}
}

func toSessionSummary(s *store.ChatSession) SessionSummary {
	summary := SessionSummary{
		SessionID:     s.SessionID,
		CompanyLabel:  s.CompanyLabel,
		StartedAt:     formatTime(s.StartedAt),
		LastMessageAt: formatTime(s.LastMessageAt),
		MessageCount:  len(s.Messages),
	}
	if n := len(s.Messages); n > 0 {
		last := s.Messages[n-1].Content
		summary.LastMessage = &last
	}
	return summary
}
