package store

import (
	"context"
	"time"

	"github.com/skimapp/skim-api/internal/domain"
)

// StoryStore defines the interface for story persistence.
type StoryStore interface {
	// Upsert inserts a story or, when a row with the same external id
	// already exists, refreshes its mutable fields (title, url, score,
	// author, comment count). Enrichment status and attempt count are
	// never touched by an upsert, which is what makes overlapping
	// continuous/backfill runs commutative.
	// Returns the stored story (with its database id and current status)
	// and whether the row was newly created.
	Upsert(ctx context.Context, story *domain.Story) (*domain.Story, bool, error)

	// GetByExternalID retrieves a story by its external identifier.
	// Returns ErrStoryNotFound if no such story exists.
	GetByExternalID(ctx context.Context, externalID int64) (*domain.Story, error)

	// ExistingExternalIDs reports which of the given external ids already
	// have story rows. Used by backfill to avoid refetching known items.
	ExistingExternalIDs(ctx context.Context, externalIDs []int64) (map[int64]bool, error)

	// SelectFailedPendingBefore returns stories in the failed_pending
	// state whose last update is older than the cutoff, oldest first.
	// Selection is by explicit failure status, never by summary absence,
	// so an enrichment call still in flight is never raced.
	SelectFailedPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Story, error)

	// MarkSummarized transitions a story to the summarized status.
	MarkSummarized(ctx context.Context, storyID int64) error

	// MarkTagged transitions a story to the tagged status and clears its
	// attempt count.
	MarkTagged(ctx context.Context, storyID int64) error

	// RecordEnrichmentFailure increments the attempt count of each story
	// and sets status to failed_pending, or to the terminal failed status
	// for stories whose incremented attempt count reaches maxAttempts.
	RecordEnrichmentFailure(ctx context.Context, storyIDs []int64, maxAttempts int) error

	// Count returns the total number of stories.
	Count(ctx context.Context) (int64, error)
}

// SummaryStore defines the interface for summary persistence.
type SummaryStore interface {
	// Upsert writes a story's summary, overwriting any existing row for
	// the same story id. The story_id unique constraint guarantees at
	// most one summary per story, so duplicate enrichment converges to
	// one row.
	Upsert(ctx context.Context, summary *domain.Summary) (*domain.Summary, error)

	// GetByStoryID retrieves the summary for a story.
	// Returns ErrNotFound if the story has no summary.
	GetByStoryID(ctx context.Context, storyID int64) (*domain.Summary, error)
}
