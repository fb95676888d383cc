// Package probe sends one bounded-time HTTP request to a remote agent
// endpoint and classifies what happened.
//
// An agent being offline is routine, so Probe never returns an error. Every
// call yields an Outcome of one of four kinds:
//
//   - KindOnline: 2xx within the deadline; Sample holds the reply text
//   - KindErrorStatus: the endpoint answered with a non-2xx status
//   - KindTimeout: the deadline passed (or the caller cancelled) first
//   - KindNetworkFailure: DNS, connect, TLS or URL errors
//
// Deadlines are chosen by callers. The gateway uses 10s for on-demand health
// checks, 15s at registration, 30s for chat relay and 5s for search probes.
package probe
