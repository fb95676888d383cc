// Package mockagent implements a stand-in agent endpoint that answers by
// keyword. The gateway mounts it at /api/mock-ep/chat when mock_agent.enabled
// is set, and cmd/mock-agent serves it standalone.
package mockagent
