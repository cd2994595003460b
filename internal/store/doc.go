// Package store provides SQLite-backed durable storage for the queue board.
//
// The store holds two tables:
//   - slots: the 48 grid cells, addressed by a surrogate INTEGER id
//   - history_log: an append-only record of checked/unchecked/text changes
//
// # Invariants
//
//   - Slots are never deleted. ClearSlotText resets text only.
//   - There is NO unique index on (row_index, side, position). Reordering
//     rewrites row_index on several slots in parallel, and a unique index
//     would reject the intermediate states. InitializeGrid gets upsert
//     semantics from an insert-if-absent inside an IMMEDIATE transaction.
//   - A history row is written in the same transaction as the mutation that
//     produced it, and only when text or checked actually changed.
//   - Slot reads are ordered by row_index, side, position, id.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - _txlock=immediate: Write transactions take the write lock up front
package store
