package store

import (
	"context"
	"time"

	"github.com/skimapp/skim-api/internal/domain"
)

// ProgressStore is the single source of truth for where each job is.
// It provides the per-job mutual exclusion gate and the durable cursors
// the sync jobs resume from.
type ProgressStore interface {
	// Get retrieves the progress record for a job.
	// Returns ErrProgressNotFound if the job has never run.
	Get(ctx context.Context, jobName string) (*domain.ProgressRecord, error)

	// TryBeginRun atomically checks and sets the job's status to running,
	// creating the record if needed. Returns false if a run is already in
	// flight or the job is completed; callers treat false as "skip this
	// trigger", not an error.
	TryBeginRun(ctx context.Context, jobName string) (bool, error)

	// AdvanceCursor commits a new cursor position. Callers only invoke
	// this after the corresponding batch of work is durably applied, so a
	// crash mid-batch replays the batch through the idempotent upsert.
	AdvanceCursor(ctx context.Context, jobName string, cursor int64) error

	// EndRun records a run's outcome: success resets the consecutive
	// failure count and returns the job to idle, failure moves it to
	// error, and completed marks the job (backfill) as done until its
	// record is reset.
	EndRun(ctx context.Context, jobName string, outcome domain.RunOutcome) error

	// RecordFailure increments the job's consecutive failure count.
	RecordFailure(ctx context.Context, jobName string) error

	// AddCounts accumulates the per-job processed/ingested counters
	// surfaced by the monitoring interface.
	AddCounts(ctx context.Context, jobName string, itemsProcessed, storiesIngested int64) error

	// Reset clears a job's cursor and returns it to idle, making a
	// completed backfill runnable again.
	Reset(ctx context.Context, jobName string) error

	// List returns the progress records for all known jobs.
	List(ctx context.Context) ([]*domain.ProgressRecord, error)
}

// FailureLedger records external ids the sync jobs skipped, so failed
// fetches stay visible for inspection and later retry.
type FailureLedger interface {
	// Record appends a skipped id with the reason it was skipped.
	Record(ctx context.Context, externalID int64, reason string) error

	// CountSince returns the number of ledger entries recorded at or
	// after the cutoff.
	CountSince(ctx context.Context, since time.Time) (int64, error)
}
