package domain

import (
	"errors"
	"strings"
	"time"
)

// Summary-specific validation errors.
var (
	// ErrSummaryStoryIDEmpty is returned when a summary has no story id.
	ErrSummaryStoryIDEmpty = errors.New("summary story ID cannot be empty")

	// ErrSummaryBodyEmpty is returned when a summary body is empty.
	ErrSummaryBodyEmpty = errors.New("summary body cannot be empty")

	// ErrSummaryModelEmpty is returned when the generating model is unset.
	ErrSummaryModelEmpty = errors.New("summary model cannot be empty")
)

// Summary is the AI-generated abstract of a story. There is at most one
// Summary per Story; re-enrichment overwrites the existing row rather than
// inserting a second one.
type Summary struct {
	ID        int64     `json:"id"`
	StoryID   int64     `json:"story_id"`
	Body      string    `json:"body"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSummary creates a Summary for the given story.
// Returns an error if validation fails.
func NewSummary(storyID int64, body, model string) (*Summary, error) {
	summary := &Summary{
		StoryID: storyID,
		Body:    strings.TrimSpace(body),
		Model:   model,
	}

	if err := summary.Validate(); err != nil {
		return nil, err
	}

	return summary, nil
}

// Validate checks if the Summary has valid data.
func (s *Summary) Validate() error {
	if s.StoryID <= 0 {
		return ErrSummaryStoryIDEmpty
	}

	if s.Body == "" {
		return ErrSummaryBodyEmpty
	}

	if s.Model == "" {
		return ErrSummaryModelEmpty
	}

	return nil
}
