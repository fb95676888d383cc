// ABOUTME: Tests for HTTP authentication middleware
// ABOUTME: Covers token extraction, verification, stored-token matching and optional auth

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/2389/agentlink-gateway/internal/store"
)

// httpTestSecret is a 32-byte secret that meets MinSecretLength requirement.
var httpTestSecret = []byte("http-middleware-test-secret-32b!")

// mockAgentLookup serves a single agent or a fixed error.
type mockAgentLookup struct {
	agent *store.Agent
	err   error
}

func (m *mockAgentLookup) GetAgentByToken(ctx context.Context, token string) (*store.Agent, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.agent == nil || m.agent.LoginToken != token {
		return nil, store.ErrNotFound
	}
	return m.agent, nil
}

func setupAgent(t *testing.T, verifier *JWTVerifier, agentID string) (*mockAgentLookup, string) {
	t.Helper()
	token, err := verifier.Generate(agentID, 0)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	return &mockAgentLookup{agent: &store.Agent{
		ID:         agentID,
		AgentName:  "Test Agent",
		OwnerName:  "Test Owner",
		LoginToken: token,
	}}, token
}

func doRequest(mw func(http.Handler) http.Handler, authHeader string, handler http.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/chat-history", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, req)
	return rec
}

func mustNotRun(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})
}

func TestHTTPAuthMiddleware_ValidToken(t *testing.T) {
	verifier, err := NewJWTVerifier(httpTestSecret)
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}
	agents, token := setupAgent(t, verifier, "agent-123")

	var gotAuthCtx *AuthContext
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuthCtx = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := doRequest(HTTPAuthMiddleware(agents, verifier, nil), "Bearer "+token, handler)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if gotAuthCtx == nil {
		t.Fatal("expected AuthContext in context")
	}
	if gotAuthCtx.AgentID != "agent-123" {
		t.Errorf("expected agent ID 'agent-123', got '%s'", gotAuthCtx.AgentID)
	}
	if gotAuthCtx.OwnerName != "Test Owner" {
		t.Errorf("expected owner 'Test Owner', got '%s'", gotAuthCtx.OwnerName)
	}
}

func TestHTTPAuthMiddleware_Rejections(t *testing.T) {
	verifier, _ := NewJWTVerifier(httpTestSecret)
	agents, token := setupAgent(t, verifier, "agent-123")

	// Correctly signed but superseded by a newer registration
	stale, _ := verifier.Generate("agent-123", 0)
	// Correctly signed for a different agent
	foreign, _ := verifier.Generate("agent-999", 0)
	expired, _ := verifier.Generate("agent-123", -time.Hour)

	tests := []struct {
		name    string
		header  string
		wantMsg string
	}{
		{"missing header", "", "missing authorization header"},
		{"wrong scheme", "Basic " + token, "invalid authorization header format"},
		{"empty token", "Bearer ", "empty token"},
		{"garbage", "Bearer not-a-token", "invalid token"},
		{"stale token", "Bearer " + stale, "invalid token"},
		{"foreign token", "Bearer " + foreign, "invalid token"},
		{"expired token", "Bearer " + expired, "token expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(HTTPAuthMiddleware(agents, verifier, nil), tt.header, mustNotRun(t))

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.wantMsg) {
				t.Errorf("expected body to contain %q, got %s", tt.wantMsg, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON content type, got %q", ct)
			}
		})
	}
}

func TestHTTPAuthMiddleware_StoreFailure(t *testing.T) {
	verifier, _ := NewJWTVerifier(httpTestSecret)
	token, _ := verifier.Generate("agent-123", 0)
	agents := &mockAgentLookup{err: errors.New("database is locked")}

	rec := doRequest(HTTPAuthMiddleware(agents, verifier, nil), "Bearer "+token, mustNotRun(t))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	verifier, _ := NewJWTVerifier(httpTestSecret)
	agents, token := setupAgent(t, verifier, "agent-123")

	tests := []struct {
		name      string
		header    string
		wantAgent string
	}{
		{"anonymous", "", ""},
		{"invalid token", "Bearer nope", ""},
		{"valid token", "Bearer " + token, "agent-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				got := ""
				if authCtx := FromContext(r.Context()); authCtx != nil {
					got = authCtx.AgentID
				}
				if got != tt.wantAgent {
					t.Errorf("agent in context = %q, want %q", got, tt.wantAgent)
				}
			})

			doRequest(OptionalAuthMiddleware(agents, verifier), tt.header, handler)

			if !called {
				t.Error("handler should always be called")
			}
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header    string
		wantToken string
		wantErr   bool
	}{
		{"Bearer abc", "abc", false},
		{"", "", true},
		{"bearer abc", "", true},
		{"Bearer ", "", true},
	}

	for _, tt := range tests {
		token, errMsg := extractBearerToken(tt.header)
		if token != tt.wantToken {
			t.Errorf("extractBearerToken(%q) token = %q, want %q", tt.header, token, tt.wantToken)
		}
		if (errMsg != "") != tt.wantErr {
			t.Errorf("extractBearerToken(%q) errMsg = %q, wantErr %v", tt.header, errMsg, tt.wantErr)
		}
	}
}
