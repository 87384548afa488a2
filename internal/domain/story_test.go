package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStory(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("valid story", func(t *testing.T) {
		t.Parallel()

		story, err := NewStory(42, "Show HN: Something", "https://example.com", "alice", 10, 3, created)
		require.NoError(t, err)

		assert.Equal(t, int64(42), story.ExternalID)
		assert.Equal(t, EnrichmentPending, story.Status)
		assert.Equal(t, 10, story.Score)
		assert.Equal(t, created, story.SourceCreatedAt)
	})

	t.Run("negative score is clamped to zero", func(t *testing.T) {
		t.Parallel()

		story, err := NewStory(42, "title", "", "bob", -5, 0, created)
		require.NoError(t, err)
		assert.Equal(t, 0, story.Score)
	})

	t.Run("invalid external id", func(t *testing.T) {
		t.Parallel()

		_, err := NewStory(0, "title", "", "bob", 1, 0, created)
		assert.ErrorIs(t, err, ErrInvalidExternalID)
	})

	t.Run("empty title", func(t *testing.T) {
		t.Parallel()

		_, err := NewStory(42, "   ", "", "bob", 1, 0, created)
		assert.ErrorIs(t, err, ErrEmptyTitle)
	})
}

func TestSanitizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"https passes", "https://example.com/x", "https://example.com/x"},
		{"http passes", "http://example.com", "http://example.com"},
		{"javascript rejected", "javascript:alert(1)", ""},
		{"data rejected", "data:text/html,hi", ""},
		{"empty stays empty", "", ""},
		{"garbage rejected", "::not-a-url::", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SanitizeURL(tt.in))
		})
	}
}

func TestEnrichmentStatus(t *testing.T) {
	t.Parallel()

	valid := []EnrichmentStatus{
		EnrichmentPending, EnrichmentSummarized, EnrichmentTagged,
		EnrichmentFailedPending, EnrichmentFailed,
	}
	for _, s := range valid {
		assert.True(t, s.IsValid(), "status %q should be valid", s)
	}
	assert.False(t, EnrichmentStatus("bogus").IsValid())

	assert.True(t, EnrichmentFailed.IsTerminal())
	assert.False(t, EnrichmentFailedPending.IsTerminal())
}

func TestNewSummary(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		s, err := NewSummary(1, "  a summary body  ", "gemini-2.0-flash")
		require.NoError(t, err)
		assert.Equal(t, "a summary body", s.Body)
	})

	t.Run("missing story id", func(t *testing.T) {
		t.Parallel()

		_, err := NewSummary(0, "body", "model")
		assert.ErrorIs(t, err, ErrSummaryStoryIDEmpty)
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()

		_, err := NewSummary(1, "   ", "model")
		assert.ErrorIs(t, err, ErrSummaryBodyEmpty)
	})

	t.Run("empty model", func(t *testing.T) {
		t.Parallel()

		_, err := NewSummary(1, "body", "")
		assert.ErrorIs(t, err, ErrSummaryModelEmpty)
	})
}
