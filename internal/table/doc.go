// Package table implements the cellsync store: a sparse, in-memory grid of
// named columns and int64 rows, plus the reactive layer that notifies
// listeners when cells change.
//
// ARCHITECTURE:
//
// Storage:
// A Table owns an ordered list of columns. Each column keeps a map of its
// non-Unit cells and a sorted slice of occupied row indexes for nearest-match
// lookups. Column position affects iteration and range membership only.
//
// References:
// CellRef, ColumnRef, RowRef, the three range kinds, TableRef and the Cells
// union are descriptors. They hold no data and re-resolve against the live
// table every time they are read or matched.
//
// Dispatch:
// Every committed change set runs as one Pass. The pass owns a shared pair of
// snapshot tables (old and new). Listeners run in ascending order, ties
// broken by registration sequence, and each receives the events covered by
// its references and admitted by its type filter. Writes into a snapshot are
// visible to later listeners in the same pass; writes into the live table are
// new mutations with their own nested pass.
//
// Context:
// The context.Context threaded through every mutating call carries the
// per-table writer lock marker, the open batch for each table, the chain of
// (listener, cell) frames currently executing and the step quota of the
// top-level call. Handlers and batch bodies must pass the context they
// receive to any nested write. A fresh context looks like an unrelated
// caller and waits for the writer lock the handler's own call holds, so
// the write deadlocks.
//
// A handler that writes another table takes that table's writer lock while
// still holding its own. Two tables whose handlers write each other from
// different goroutines can therefore deadlock.
//
// INVARIANTS:
//   - Calls are synchronous: a call returns after every pass it caused.
//   - A listener runs at most once per pass.
//   - Only the outermost batch of a table flushes, exactly once.
//   - A listener without AllowLoop is never notified while one of its own
//     invocations is further up the chain, whatever cell the new event is
//     for; the call fails instead.
//   - Clones share neither storage nor listeners with their source.
package table
