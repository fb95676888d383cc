// Package relay forwards one chat message to one remote agent and keeps the
// session transcript.
//
// The outbound message is written to the session log before the agent is
// contacted, so a transcript exists even when delivery fails. The agent's
// reply, or a system notice for an error status, is appended after the call
// resolves. Timeouts and unreachable agents leave only the outbound entry.
//
// Delivery failures are returned as *RelayError values; use errors.As to
// inspect the Kind.
package relay
