package postgres

import (
	"context"
	"fmt"

	"github.com/skimapp/skim-api/internal/domain"
	"github.com/skimapp/skim-api/internal/store"
)

// SummaryStore implements the store.SummaryStore interface using PostgreSQL.
type SummaryStore struct {
	db store.DBTX
}

// NewSummaryStore creates a new PostgreSQL implementation of store.SummaryStore.
func NewSummaryStore(db store.DBTX) *SummaryStore {
	return &SummaryStore{db: db}
}

// Ensure SummaryStore implements store.SummaryStore.
var _ store.SummaryStore = (*SummaryStore)(nil)

// Upsert implements store.SummaryStore.Upsert. The story_id unique
// constraint plus ON CONFLICT DO UPDATE guarantees at most one summary per
// story regardless of how many times enrichment runs.
func (s *SummaryStore) Upsert(ctx context.Context, summary *domain.Summary) (*domain.Summary, error) {
	if err := summary.Validate(); err != nil {
		return nil, fmt.Errorf("invalid summary: %w", err)
	}

	query := `
		INSERT INTO summaries (story_id, body, model, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (story_id) DO UPDATE
		SET body = EXCLUDED.body,
			model = EXCLUDED.model,
			created_at = now()
		RETURNING id, created_at
	`

	stored := *summary
	err := s.db.QueryRowContext(ctx, query,
		summary.StoryID,
		summary.Body,
		summary.Model,
	).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrStoryNotFound
		}
		return nil, fmt.Errorf("failed to upsert summary: %w", err)
	}

	return &stored, nil
}

// GetByStoryID implements store.SummaryStore.GetByStoryID.
func (s *SummaryStore) GetByStoryID(ctx context.Context, storyID int64) (*domain.Summary, error) {
	query := `
		SELECT id, story_id, body, model, created_at
		FROM summaries
		WHERE story_id = $1
	`

	var summary domain.Summary
	err := s.db.QueryRowContext(ctx, query, storyID).Scan(
		&summary.ID,
		&summary.StoryID,
		&summary.Body,
		&summary.Model,
		&summary.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err, store.ErrNotFound)
	}

	return &summary, nil
}
