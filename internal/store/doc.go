// Package store provides SQLite-backed durable storage for the action journal.
//
// The store implements an append-only log with:
//   - Actions: every action delivered through the dispatch pipeline
//   - Snapshots: model state slices at a revision, for replay verification
//
// # Logical Identity and Time
//
// All ordering uses the seq the engine stamps on each dispatch, never
// timestamps, so a replayed journal orders identically regardless of wall
// time. Queries that return several entries order by seq ASC.
//
// # Content Hashes
//
// Every action row carries ir.ActionHash of the journaled action (canonical
// JSON, SHA-256 with domain separation). Snapshots carry ir.StateHash so a
// replayed state can be compared without decoding.
//
// # Encoding
//
//   - payload: canonical JSON of ir.Payload.View (data, arguments, message)
//   - state: CBOR (RFC 8949 canonical map order)
//
// Non-serialisable payload parts (the call's future, exec descriptors, the
// owning model's initial state) are never journaled.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
