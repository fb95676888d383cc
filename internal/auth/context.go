// ABOUTME: Authentication context for tracking the logged-in agent owner through handlers
// ABOUTME: Provides WithAuth/FromContext for propagating auth info via context

package auth

import (
	"context"
)

// AuthContext holds the authenticated identity extracted from a request.
type AuthContext struct {
	AgentID   string
	AgentName string
	OwnerName string
}

// Owns reports whether the authenticated talent owns the given agent.
func (a *AuthContext) Owns(agentID string) bool {
	return a != nil && a.AgentID == agentID
}

// authContextKey is the key type for storing AuthContext in context.Context.
type authContextKey struct{}

// WithAuth returns a new context with the AuthContext attached.
func WithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// FromContext returns the talent attached by the middleware, or nil for
// anonymous requests.
func FromContext(ctx context.Context) *AuthContext {
	a, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return a
}

// MustFromContext is FromContext for handlers mounted behind
// HTTPAuthMiddleware.
func MustFromContext(ctx context.Context) *AuthContext {
	a := FromContext(ctx)
	if a == nil {
		panic("auth: no authenticated agent in context")
	}
	return a
}
