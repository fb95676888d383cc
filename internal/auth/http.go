// ABOUTME: HTTP middleware for login-token authentication on talent endpoints
// ABOUTME: Extracts JWT from Authorization header and adds the owning agent to context

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/2389/agentlink-gateway/internal/store"
)

// AgentLookup resolves a stored login token to its agent.
type AgentLookup interface {
	GetAgentByToken(ctx context.Context, token string) (*store.Agent, error)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// errUnknownToken means the token verified but is not the one stored for its
// agent, typically because the agent re-registered.
var errUnknownToken = errors.New("token not recognised")

// authenticate verifies the token signature, then confirms it is the token
// currently stored for the agent named in its subject.
func authenticate(ctx context.Context, agents AgentLookup, verifier TokenVerifier, token string) (*AuthContext, error) {
	agentID, err := verifier.Verify(token)
	if err != nil {
		return nil, err
	}

	agent, err := agents.GetAgentByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errUnknownToken
		}
		return nil, err
	}
	if agent.ID != agentID {
		return nil, errUnknownToken
	}

	return &AuthContext{
		AgentID:   agent.ID,
		AgentName: agent.AgentName,
		OwnerName: agent.OwnerName,
	}, nil
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// HTTPAuthMiddleware creates an HTTP middleware that requires a valid login
// token and adds the AuthContext to the request context.
func HTTPAuthMiddleware(agents AgentLookup, verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				writeAuthError(w, http.StatusUnauthorized, errMsg)
				return
			}

			authCtx, err := authenticate(r.Context(), agents, verifier, token)
			switch {
			case err == nil:
			case errors.Is(err, ErrExpiredToken):
				writeAuthError(w, http.StatusUnauthorized, "token expired")
				return
			case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrMissingClaim), errors.Is(err, errUnknownToken):
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			default:
				logger.Error("token lookup failed", "error", err)
				writeAuthError(w, http.StatusInternalServerError, "internal error")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}

// OptionalAuthMiddleware attempts token auth but allows unauthenticated requests.
// Useful for endpoints that show more to the owner than to anonymous viewers.
func OptionalAuthMiddleware(agents AgentLookup, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				next.ServeHTTP(w, r) // Continue as anonymous
				return
			}

			authCtx, err := authenticate(r.Context(), agents, verifier, token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}
