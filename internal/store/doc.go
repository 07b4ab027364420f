// Package store provides SQLite-backed durable storage for navigation traces.
//
// A session is one run of the engine: the schema it ran under and the
// history entries the log started with. Every processed event becomes one
// row in transitions, keyed by (session_id, seq).
//
// # Critical Patterns
//
// Logical Time:
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - Session IDs are UUIDv7 so listing by id follows creation order
//
// Canonical Records:
//   - The record column holds the RFC 8785 canonical JSON of
//     Transition.RecordMap, the same bytes replay compares against
//   - Writes use ON CONFLICT DO NOTHING so re-recording is idempotent
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
