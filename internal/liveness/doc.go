// Package liveness fans probes out across a set of directory agents and ranks
// the results.
//
// RankAgents probes every candidate concurrently, records each outcome in the
// directory as a best-effort side effect, waits for all probes, and returns
// the agents as credential-free Listings: online agents first, fastest first,
// then offline agents in their original order.
//
// Liveness writes are last-write-wins. Two overlapping rankings of the same
// agent may store either result, which is acceptable because liveness is
// advisory and refreshed on every search.
package liveness
