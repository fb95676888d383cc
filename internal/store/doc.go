// Package store provides persistent storage for the gateway using SQLite.
//
// # Architecture
//
// The store package splits persistence into two interfaces:
//
//   - DirectoryStore: registered agents and their advisory liveness
//   - SessionLogStore: append-only chat transcripts grouped by session
//
// Store embeds both plus Ping/Close. SQLiteStore implements Store in a single
// struct; MockStore is an in-memory implementation used by tests in other
// packages.
//
// # Data Models
//
//   - Agent: directory entry with profile fields, credential and liveness
//   - ChatMessage: one transcript entry with a Role and a monotonic Seq
//   - ChatSession: session metadata plus its ordered messages
//
// # Consistency
//
// Every write is a single-row upsert or append. Liveness updates from
// overlapping probes are last-write-wins; no version check is performed.
// Within one store, messages are returned in append order (Seq ascending).
//
// # Timestamps
//
// Times are stored in UTC as fixed-width RFC3339 strings with nanoseconds,
// so ORDER BY on a timestamp column matches chronological order.
package store
