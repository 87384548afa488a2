package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/skimapp/skim-api/internal/domain"
	"github.com/skimapp/skim-api/internal/platform/logger"
	"github.com/skimapp/skim-api/internal/store"
)

// StoryStore implements the store.StoryStore interface using PostgreSQL.
type StoryStore struct {
	db store.DBTX
}

// NewStoryStore creates a new PostgreSQL implementation of store.StoryStore.
func NewStoryStore(db store.DBTX) *StoryStore {
	return &StoryStore{db: db}
}

// Ensure StoryStore implements store.StoryStore.
var _ store.StoryStore = (*StoryStore)(nil)

const storyColumns = `id, external_id, title, COALESCE(url, ''), score, author,
	comment_count, source_created_at, status, attempt_count, created_at, updated_at`

// Upsert implements store.StoryStore.Upsert. The ON CONFLICT clause only
// refreshes fields that come from the content source; status and
// attempt_count belong to the enrichment pipeline and stay untouched.
func (s *StoryStore) Upsert(ctx context.Context, story *domain.Story) (*domain.Story, bool, error) {
	log := logger.FromContext(ctx)

	if err := story.Validate(); err != nil {
		return nil, false, fmt.Errorf("invalid story: %w", err)
	}

	query := `
		INSERT INTO stories (external_id, title, url, score, author,
			comment_count, source_created_at, status, attempt_count,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, now(), now())
		ON CONFLICT (external_id) DO UPDATE
		SET title = EXCLUDED.title,
			url = EXCLUDED.url,
			score = EXCLUDED.score,
			author = EXCLUDED.author,
			comment_count = EXCLUDED.comment_count,
			updated_at = now()
		RETURNING id, status, attempt_count, created_at, updated_at, (xmax = 0)
	`

	stored := *story
	var created bool
	err := s.db.QueryRowContext(ctx, query,
		story.ExternalID,
		story.Title,
		nullableString(story.URL),
		story.Score,
		story.Author,
		story.CommentCount,
		story.SourceCreatedAt,
		story.Status,
	).Scan(
		&stored.ID,
		&stored.Status,
		&stored.AttemptCount,
		&stored.CreatedAt,
		&stored.UpdatedAt,
		&created,
	)
	if err != nil {
		log.Error("failed to upsert story",
			"external_id", story.ExternalID,
			"error", err)
		return nil, false, fmt.Errorf("failed to upsert story: %w", err)
	}

	return &stored, created, nil
}

// GetByExternalID implements store.StoryStore.GetByExternalID.
func (s *StoryStore) GetByExternalID(ctx context.Context, externalID int64) (*domain.Story, error) {
	query := `SELECT ` + storyColumns + ` FROM stories WHERE external_id = $1`

	story, err := scanStory(s.db.QueryRowContext(ctx, query, externalID))
	if err != nil {
		return nil, mapError(err, store.ErrStoryNotFound)
	}
	return story, nil
}

// ExistingExternalIDs implements store.StoryStore.ExistingExternalIDs.
func (s *StoryStore) ExistingExternalIDs(ctx context.Context, externalIDs []int64) (map[int64]bool, error) {
	existing := make(map[int64]bool, len(externalIDs))
	if len(externalIDs) == 0 {
		return existing, nil
	}

	query := `SELECT external_id FROM stories WHERE external_id = ANY($1)`

	rows, err := s.db.QueryContext(ctx, query, externalIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing external ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan external id: %w", err)
		}
		existing[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate external ids: %w", err)
	}

	return existing, nil
}

// SelectFailedPendingBefore implements store.StoryStore.SelectFailedPendingBefore.
func (s *StoryStore) SelectFailedPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Story, error) {
	query := `
		SELECT ` + storyColumns + `
		FROM stories
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, domain.EnrichmentFailedPending, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query failed-pending stories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stories []*domain.Story
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		stories = append(stories, story)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stories: %w", err)
	}

	return stories, nil
}

// MarkSummarized implements store.StoryStore.MarkSummarized.
func (s *StoryStore) MarkSummarized(ctx context.Context, storyID int64) error {
	return s.setStatus(ctx, storyID, domain.EnrichmentSummarized, false)
}

// MarkTagged implements store.StoryStore.MarkTagged.
func (s *StoryStore) MarkTagged(ctx context.Context, storyID int64) error {
	return s.setStatus(ctx, storyID, domain.EnrichmentTagged, true)
}

func (s *StoryStore) setStatus(ctx context.Context, storyID int64, status domain.EnrichmentStatus, resetAttempts bool) error {
	query := `
		UPDATE stories
		SET status = $2,
			attempt_count = CASE WHEN $3 THEN 0 ELSE attempt_count END,
			updated_at = now()
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, storyID, status, resetAttempts)
	if err != nil {
		return fmt.Errorf("failed to set story status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrStoryNotFound
	}

	return nil
}

// RecordEnrichmentFailure implements store.StoryStore.RecordEnrichmentFailure.
// A story only enters the terminal failed status once its incremented
// attempt count reaches maxAttempts; until then it stays failed_pending and
// remains visible to the recovery sweep.
func (s *StoryStore) RecordEnrichmentFailure(ctx context.Context, storyIDs []int64, maxAttempts int) error {
	if len(storyIDs) == 0 {
		return nil
	}

	log := logger.FromContext(ctx)

	query := `
		UPDATE stories
		SET attempt_count = attempt_count + 1,
			status = CASE
				WHEN attempt_count + 1 >= $2 THEN 'failed'
				ELSE 'failed_pending'
			END,
			updated_at = now()
		WHERE id = ANY($1)
	`

	if _, err := s.db.ExecContext(ctx, query, storyIDs, maxAttempts); err != nil {
		log.Error("failed to record enrichment failure",
			"story_count", len(storyIDs),
			"error", err)
		return fmt.Errorf("failed to record enrichment failure: %w", err)
	}

	return nil
}

// Count implements store.StoryStore.Count.
func (s *StoryStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM stories`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count stories: %w", err)
	}
	return count, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanStory.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanStory(row rowScanner) (*domain.Story, error) {
	var story domain.Story
	err := row.Scan(
		&story.ID,
		&story.ExternalID,
		&story.Title,
		&story.URL,
		&story.Score,
		&story.Author,
		&story.CommentCount,
		&story.SourceCreatedAt,
		&story.Status,
		&story.AttemptCount,
		&story.CreatedAt,
		&story.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &story, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
