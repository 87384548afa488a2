// Package store defines the persistence interfaces consumed by the
// ingestion jobs, together with shared error sentinels and transaction
// helpers. Concrete implementations live under internal/platform/postgres.
//
// The interfaces are deliberately narrow: each job depends only on the
// operations it performs, and all cross-job coordination happens through
// idempotent upserts keyed on external story identity plus the progress
// table's atomic begin/end-run operations.
package store
