package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/skimapp/skim-api/internal/domain"
	"github.com/skimapp/skim-api/internal/platform/logger"
	"github.com/skimapp/skim-api/internal/store"
)

// ProgressStore implements the store.ProgressStore interface using PostgreSQL.
type ProgressStore struct {
	db store.DBTX
}

// NewProgressStore creates a new PostgreSQL implementation of store.ProgressStore.
func NewProgressStore(db store.DBTX) *ProgressStore {
	return &ProgressStore{db: db}
}

// Ensure ProgressStore implements store.ProgressStore.
var _ store.ProgressStore = (*ProgressStore)(nil)

const progressColumns = `job_name, cursor, status, last_run_at, failure_count,
	items_processed, stories_ingested, updated_at`

// Get implements store.ProgressStore.Get.
func (s *ProgressStore) Get(ctx context.Context, jobName string) (*domain.ProgressRecord, error) {
	query := `SELECT ` + progressColumns + ` FROM progress WHERE job_name = $1`

	record, err := scanProgress(s.db.QueryRowContext(ctx, query, jobName))
	if err != nil {
		return nil, mapError(err, store.ErrProgressNotFound)
	}
	return record, nil
}

// TryBeginRun implements store.ProgressStore.TryBeginRun. The conditional
// ON CONFLICT update is the mutual-exclusion gate: when the row is already
// running the WHERE clause fails, zero rows are affected, and the caller
// skips this trigger. Only one run per job name can ever hold running.
// Completed jobs also refuse acquisition until their record is reset.
func (s *ProgressStore) TryBeginRun(ctx context.Context, jobName string) (bool, error) {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO progress (job_name, status, updated_at)
		VALUES ($1, 'running', now())
		ON CONFLICT (job_name) DO UPDATE
		SET status = 'running', updated_at = now()
		WHERE progress.status NOT IN ('running', 'completed')
	`

	result, err := s.db.ExecContext(ctx, query, jobName)
	if err != nil {
		log.Error("failed to begin run", "job", jobName, "error", err)
		return false, fmt.Errorf("failed to begin run for %s: %w", jobName, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected == 1, nil
}

// AdvanceCursor implements store.ProgressStore.AdvanceCursor.
func (s *ProgressStore) AdvanceCursor(ctx context.Context, jobName string, cursor int64) error {
	query := `UPDATE progress SET cursor = $2, updated_at = now() WHERE job_name = $1`

	result, err := s.db.ExecContext(ctx, query, jobName, cursor)
	if err != nil {
		return fmt.Errorf("failed to advance cursor for %s: %w", jobName, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrProgressNotFound
	}

	return nil
}

// EndRun implements store.ProgressStore.EndRun.
func (s *ProgressStore) EndRun(ctx context.Context, jobName string, outcome domain.RunOutcome) error {
	var status domain.RunStatus
	switch outcome {
	case domain.OutcomeSuccess:
		status = domain.RunIdle
	case domain.OutcomeFailure:
		status = domain.RunError
	case domain.OutcomeCompleted:
		status = domain.RunCompleted
	default:
		return fmt.Errorf("%w: %q", domain.ErrInvalidRunStatus, outcome)
	}

	query := `
		UPDATE progress
		SET status = $2,
			last_run_at = now(),
			failure_count = CASE WHEN $2 <> 'error' THEN 0 ELSE failure_count END,
			updated_at = now()
		WHERE job_name = $1
	`

	result, err := s.db.ExecContext(ctx, query, jobName, status)
	if err != nil {
		return fmt.Errorf("failed to end run for %s: %w", jobName, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrProgressNotFound
	}

	return nil
}

// RecordFailure implements store.ProgressStore.RecordFailure.
func (s *ProgressStore) RecordFailure(ctx context.Context, jobName string) error {
	query := `
		UPDATE progress
		SET failure_count = failure_count + 1, updated_at = now()
		WHERE job_name = $1
	`

	if _, err := s.db.ExecContext(ctx, query, jobName); err != nil {
		return fmt.Errorf("failed to record failure for %s: %w", jobName, err)
	}
	return nil
}

// AddCounts implements store.ProgressStore.AddCounts.
func (s *ProgressStore) AddCounts(ctx context.Context, jobName string, itemsProcessed, storiesIngested int64) error {
	query := `
		UPDATE progress
		SET items_processed = items_processed + $2,
			stories_ingested = stories_ingested + $3,
			updated_at = now()
		WHERE job_name = $1
	`

	if _, err := s.db.ExecContext(ctx, query, jobName, itemsProcessed, storiesIngested); err != nil {
		return fmt.Errorf("failed to add counts for %s: %w", jobName, err)
	}
	return nil
}

// Reset implements store.ProgressStore.Reset.
func (s *ProgressStore) Reset(ctx context.Context, jobName string) error {
	query := `
		UPDATE progress
		SET cursor = NULL,
			status = 'idle',
			failure_count = 0,
			items_processed = 0,
			stories_ingested = 0,
			updated_at = now()
		WHERE job_name = $1
	`

	result, err := s.db.ExecContext(ctx, query, jobName)
	if err != nil {
		return fmt.Errorf("failed to reset progress for %s: %w", jobName, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrProgressNotFound
	}

	return nil
}

// List implements store.ProgressStore.List.
func (s *ProgressStore) List(ctx context.Context) ([]*domain.ProgressRecord, error) {
	query := `SELECT ` + progressColumns + ` FROM progress ORDER BY job_name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*domain.ProgressRecord
	for rows.Next() {
		record, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate progress records: %w", err)
	}

	return records, nil
}

func scanProgress(row rowScanner) (*domain.ProgressRecord, error) {
	var record domain.ProgressRecord
	var cursor sql.NullInt64
	var lastRunAt sql.NullTime

	err := row.Scan(
		&record.JobName,
		&cursor,
		&record.Status,
		&lastRunAt,
		&record.FailureCount,
		&record.ItemsProcessed,
		&record.StoriesIngested,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if cursor.Valid {
		record.Cursor = cursor.Int64
		record.HasCursor = true
	}
	if lastRunAt.Valid {
		t := lastRunAt.Time
		record.LastRunAt = &t
	}

	return &record, nil
}
