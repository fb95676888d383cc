// Package gateway wires the agentlink components into one HTTP server.
//
// # Overview
//
// The Gateway owns the store, the dedupe cache and the HTTP server, and
// builds the registry, search, relay and profile services on top of them.
// One probe.Prober is shared by every caller; each caller picks its own
// deadline from the probes section of the config.
//
// # HTTP API
//
//   - POST /api/register-agent - validate a manifest and register the agent
//   - POST /api/health - connection test against an endpoint URL
//   - POST /api/search-agents - filter, probe and rank the directory
//   - POST /api/chat - relay a recruiter message to an agent
//   - GET /api/agents/{id} - agent profile (owner sees private fields)
//   - POST /api/chat/direct - talent posts into a session (login token)
//   - GET /api/chat-history - talent's sessions or one transcript (login token)
//   - POST /api/mock-ep/chat - built-in mock agent, when mock_agent.enabled
//   - GET /health - liveness check
//   - GET /health/ready - readiness check (store ping)
//
// Errors are JSON objects with an "error" field. Relay failures map to 502
// (agent error status), 504 (timeout) and 503 (unreachable).
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	err = gw.Run(ctx)
//
// Run returns after the server has drained in-flight requests and closed
// the store.
package gateway
