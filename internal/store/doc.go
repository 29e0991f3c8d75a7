// Package store provides SQLite-backed run history for scenario executions.
//
// Each run records the scenario it executed, whether it passed, the failure
// messages and the trace digest; its trace events are stored alongside, one
// row per event, values as canonical JSON.
//
// # Ordering
//
//   - Runs are ordered by seq (insertion order), never by started_at
//   - Trace rows are ordered by their trace seq
//
// The latest digest of a scenario is the baseline the CLI compares a new run
// against: a different digest means the graph behaved differently.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Trace rows cascade with their run
package store
