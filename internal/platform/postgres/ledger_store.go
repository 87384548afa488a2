package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/skimapp/skim-api/internal/store"
)

// LedgerStore implements the store.FailureLedger interface using PostgreSQL.
type LedgerStore struct {
	db store.DBTX
}

// NewLedgerStore creates a new PostgreSQL implementation of store.FailureLedger.
func NewLedgerStore(db store.DBTX) *LedgerStore {
	return &LedgerStore{db: db}
}

// Ensure LedgerStore implements store.FailureLedger.
var _ store.FailureLedger = (*LedgerStore)(nil)

// Record implements store.FailureLedger.Record.
func (s *LedgerStore) Record(ctx context.Context, externalID int64, reason string) error {
	query := `
		INSERT INTO fetch_failures (external_id, reason, created_at)
		VALUES ($1, $2, now())
	`

	if _, err := s.db.ExecContext(ctx, query, externalID, reason); err != nil {
		return fmt.Errorf("failed to record fetch failure: %w", err)
	}
	return nil
}

// CountSince implements store.FailureLedger.CountSince.
func (s *LedgerStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM fetch_failures WHERE created_at >= $1`,
		since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count fetch failures: %w", err)
	}
	return count, nil
}
