package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skimapp/skim-api/internal/domain"
)

func TestEnrichStage(t *testing.T) {
	t.Parallel()

	newStories := func(t *testing.T, stories *fakeStoryStore, n int) []*domain.Story {
		t.Helper()
		out := make([]*domain.Story, 0, n)
		for i := 1; i <= n; i++ {
			story, err := domain.NewStory(int64(i), "Story", "https://example.com", "alice", 1, 0, time.Now().UTC())
			require.NoError(t, err)
			stored, _, err := stories.Upsert(context.Background(), story)
			require.NoError(t, err)
			out = append(out, stored)
		}
		return out
	}

	t.Run("chunks the input into bounded batches", func(t *testing.T) {
		t.Parallel()

		stories := newFakeStoryStore()
		enricher := &fakeEnricher{}
		stage := NewEnrichStage(enricher, stories, newFakeSummaryStore(), newFakeTagStore(), 5, 3)

		enriched, err := stage.Enrich(context.Background(), newStories(t, stories, 12))
		require.NoError(t, err)
		assert.Equal(t, 12, enriched)
		require.Len(t, enricher.batches, 3)
		assert.Len(t, enricher.batches[0], 5)
		assert.Len(t, enricher.batches[2], 2)
	})

	t.Run("skips tagged and terminal stories", func(t *testing.T) {
		t.Parallel()

		stories := newFakeStoryStore()
		enricher := &fakeEnricher{}
		stage := NewEnrichStage(enricher, stories, newFakeSummaryStore(), newFakeTagStore(), 5, 3)

		batch := newStories(t, stories, 3)
		batch[0].Status = domain.EnrichmentTagged
		batch[1].Status = domain.EnrichmentFailed

		enriched, err := stage.Enrich(context.Background(), batch)
		require.NoError(t, err)
		assert.Equal(t, 1, enriched)
		require.Len(t, enricher.batches, 1)
		assert.Equal(t, []int64{batch[2].ID}, enricher.batches[0])
	})

	t.Run("one failed batch does not stop the rest", func(t *testing.T) {
		t.Parallel()

		stories := newFakeStoryStore()
		enricher := &fakeEnricher{failures: 1}
		stage := NewEnrichStage(enricher, stories, newFakeSummaryStore(), newFakeTagStore(), 5, 3)

		enriched, err := stage.Enrich(context.Background(), newStories(t, stories, 10))
		require.NoError(t, err)
		assert.Equal(t, 5, enriched)

		// First batch failed and was recorded against the attempt budget.
		require.Len(t, stories.failureCalls, 1)
		assert.Len(t, stories.failureCalls[0], 5)
	})

	t.Run("stores tags through the taxonomy", func(t *testing.T) {
		t.Parallel()

		stories := newFakeStoryStore()
		tags := newFakeTagStore()
		enricher := &fakeEnricher{tags: []string{"Tech", "AI/ML", "ai/ml", "self-hosting"}}
		stage := NewEnrichStage(enricher, stories, newFakeSummaryStore(), tags, 5, 3)

		batch := newStories(t, stories, 1)
		enriched, err := stage.Enrich(context.Background(), batch)
		require.NoError(t, err)
		assert.Equal(t, 1, enriched)

		// Duplicate names collapse to one tag, and levels are assigned.
		assert.Len(t, tags.tags, 3)
		assert.Equal(t, 1, tags.tags["tech"].Level)
		assert.Equal(t, 2, tags.tags["ai-ml"].Level)
		assert.Equal(t, 3, tags.tags["self-hosting"].Level)
		assert.Len(t, tags.links[batch[0].ID], 3)
	})
}
