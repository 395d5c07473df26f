// Package store provides the SQLite-backed local entity store for diagrams.
//
// The store mirrors the browser object-store layout the diagram editor uses:
//   - diagrams: one row per diagram, keyed by id
//   - db_tables, db_relationships, db_dependencies, areas, notes,
//     db_custom_types: one row per child entity, keyed by entity id, with
//     a secondary index on the owning diagram id
//   - config: key/value rows, holding the default-diagram pointer
//
// Child rows hold their entity as a JSON document in the wire format, so
// fields and indexes travel inline with their table.
//
// # Critical Patterns
//
// Whole-diagram writes:
//   - WriteFull clears and re-inserts every child collection in one transaction
//   - A missing collection is a SchemaMismatch, detected before writing
//
// Deterministic reads:
//   - Children come back in insertion order: ORDER BY ordinal, id COLLATE BINARY
//   - Empty collections read as empty slices, never nil
//   - Without an owner index, the collection is scanned and filtered in Go
//
// Write observation:
//   - Subscribe delivers a WriteEvent after every commit
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Schema is created by embedded goose migrations under migrations/.
package store
