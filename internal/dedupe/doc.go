// Package dedupe suppresses repeated chat submissions.
//
// Clients may attach a clientMessageId to each chat request. The gateway
// claims Key(agentID, sessionID, clientMessageId) before relaying; a second
// submission with the same key inside the TTL window is rejected as a
// duplicate instead of reaching the agent twice. When a relay aborts before
// the agent was contacted, the claim is released so the client can retry.
package dedupe
