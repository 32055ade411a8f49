// Package store persists tables and their event history in SQLite.
//
// Two tables:
//   - snapshots: codec containers, versioned per table name by seq
//   - events: the journal of delivered events, one row per event
//
// Event values, like golden traces, are canonical JSON so that rows written
// by different runs compare byte for byte.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - schema version in PRAGMA user_version; a database written by a newer
//     build is refused with *codec.InvalidStorageError
//
// All reads order by seq then id so results are deterministic.
package store
