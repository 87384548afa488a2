package job

import (
	"context"
	"fmt"

	"github.com/skimapp/skim-api/internal/domain"
	"github.com/skimapp/skim-api/internal/generation"
	"github.com/skimapp/skim-api/internal/platform/logger"
	"github.com/skimapp/skim-api/internal/store"
	"github.com/skimapp/skim-api/internal/taxonomy"
)

// EnrichStage is the shared summarization and tagging stage. The sync
// jobs hand it newly ingested stories and the recovery sweep hands it
// stories whose earlier enrichment failed; it chunks them into bounded
// batches, one model call per batch.
//
// An enrichment call failure is absorbed here: the batch's stories get a
// failure recorded against their attempt budget and the stage moves on
// to the next batch. Only persistence errors propagate to the caller.
type EnrichStage struct {
	enricher    generation.Enricher
	stories     store.StoryStore
	summaries   store.SummaryStore
	tags        store.TagStore
	batchSize   int
	maxAttempts int
}

// NewEnrichStage creates an EnrichStage.
func NewEnrichStage(
	enricher generation.Enricher,
	stories store.StoryStore,
	summaries store.SummaryStore,
	tags store.TagStore,
	batchSize int,
	maxAttempts int,
) *EnrichStage {
	return &EnrichStage{
		enricher:    enricher,
		stories:     stories,
		summaries:   summaries,
		tags:        tags,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

// Enrich summarizes and tags the given stories. Stories already in a
// terminal or tagged state are skipped. Returns the number of stories
// fully enriched.
func (s *EnrichStage) Enrich(ctx context.Context, stories []*domain.Story) (int, error) {
	log := logger.FromContext(ctx)

	eligible := make([]*domain.Story, 0, len(stories))
	for _, story := range stories {
		if story.Status == domain.EnrichmentTagged || story.Status.IsTerminal() {
			continue
		}
		eligible = append(eligible, story)
	}

	enriched := 0
	for start := 0; start < len(eligible); start += s.batchSize {
		end := min(start+s.batchSize, len(eligible))
		batch := eligible[start:end]

		results, err := s.enricher.EnrichBatch(ctx, batch)
		if err != nil {
			// The batch fails as a unit. Record the failure and keep
			// going; the recovery sweep retries these later.
			log.Warn("enrichment batch failed",
				"batch_size", len(batch),
				"error", err)
			ids := make([]int64, len(batch))
			for i, story := range batch {
				ids[i] = story.ID
			}
			if recErr := s.stories.RecordEnrichmentFailure(ctx, ids, s.maxAttempts); recErr != nil {
				return enriched, fmt.Errorf("failed to record enrichment failure: %w", recErr)
			}
			continue
		}

		for _, result := range results {
			if err := s.persist(ctx, result); err != nil {
				return enriched, err
			}
			enriched++
		}
	}

	return enriched, nil
}

// persist applies one story's enrichment: summary first, then tags.
// Each step is idempotent, and the status transitions commit after the
// data they describe, so a crash mid-story is safe to replay.
func (s *EnrichStage) persist(ctx context.Context, result generation.Enrichment) error {
	summary, err := domain.NewSummary(result.StoryID, result.Summary, result.Model)
	if err != nil {
		return fmt.Errorf("invalid summary for story %d: %w", result.StoryID, err)
	}
	if _, err := s.summaries.Upsert(ctx, summary); err != nil {
		return fmt.Errorf("failed to store summary for story %d: %w", result.StoryID, err)
	}
	if err := s.stories.MarkSummarized(ctx, result.StoryID); err != nil {
		return fmt.Errorf("failed to mark story %d summarized: %w", result.StoryID, err)
	}

	tagIDs := make([]int64, 0, len(result.Tags))
	for _, tag := range taxonomy.Resolve(result.Tags) {
		stored, err := s.tags.GetOrCreate(ctx, tag)
		if err != nil {
			return fmt.Errorf("failed to resolve tag %q: %w", tag.Slug, err)
		}
		tagIDs = append(tagIDs, stored.ID)
	}
	if err := s.tags.AttachToStory(ctx, result.StoryID, tagIDs); err != nil {
		return fmt.Errorf("failed to attach tags to story %d: %w", result.StoryID, err)
	}

	if err := s.stories.MarkTagged(ctx, result.StoryID); err != nil {
		return fmt.Errorf("failed to mark story %d tagged: %w", result.StoryID, err)
	}
	return nil
}
