package generation

import (
	"context"

	"github.com/skimapp/skim-api/internal/domain"
)

// Enrichment is the result of summarizing and tagging one story.
type Enrichment struct {
	StoryID int64
	Summary string
	Model   string
	// Tags are raw names as produced by the model; the taxonomy package
	// normalizes and levels them before persistence.
	Tags []string
}

// Enricher generates summaries and tags for a batch of stories.
// A batch succeeds or fails as a unit: one external call covers all
// stories, and a call failure leaves none of them enriched.
type Enricher interface {
	// EnrichBatch issues one call for the whole batch and returns one
	// Enrichment per story. Errors are classified by the sentinels in
	// errors.go.
	EnrichBatch(ctx context.Context, stories []*domain.Story) ([]Enrichment, error)
}
