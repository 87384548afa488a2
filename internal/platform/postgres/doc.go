// Package postgres provides PostgreSQL-backed implementations of the
// persistence interfaces defined in internal/store. All implementations
// accept a store.DBTX so they can run against either the shared connection
// pool or an enclosing transaction.
//
// Idempotency lives here: story writes are INSERT ... ON CONFLICT upserts
// keyed on external_id, summary writes upsert on story_id, and the progress
// table's begin-run uses an atomic conditional update as the per-job
// mutual exclusion gate.
package postgres
