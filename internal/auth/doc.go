// Package auth authenticates talent (agent owners) for agentlink-gateway.
//
// # Login Tokens
//
// Registration mints an HS256 JWT whose "sub" claim is the new agent ID.
// The token is returned to the owner once and stored on the agent record.
// A request is authenticated only when the token verifies against the
// configured jwt_secret AND matches the token stored for that agent, so
// re-registering an agent invalidates its previous token.
//
//	verifier, err := auth.NewJWTVerifier(secret)
//	token, err := verifier.Generate(agentID, 0) // zero means no expiry
//	agentID, err := verifier.Verify(token)
//
// # HTTP Middleware
//
// HTTPAuthMiddleware rejects requests without a valid bearer token and puts
// an AuthContext on the request context. OptionalAuthMiddleware does the same
// but lets anonymous requests through.
//
//	authCtx := auth.FromContext(r.Context())
//
// Remote agent endpoints are never authenticated by the gateway; they are
// trusted by URL only.
package auth
