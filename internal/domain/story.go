package domain

import (
	"net/url"
	"strings"
	"time"
)

// EnrichmentStatus tracks how far a story has progressed through the
// summarization/tagging pipeline.
type EnrichmentStatus string

// Possible enrichment status values.
//
// failed_pending marks stories whose last enrichment call failed but whose
// attempt budget is not yet exhausted; the recovery sweep picks these up.
// failed is terminal and only entered once attempts reach the configured
// maximum.
const (
	EnrichmentPending       EnrichmentStatus = "pending"
	EnrichmentSummarized    EnrichmentStatus = "summarized"
	EnrichmentTagged        EnrichmentStatus = "tagged"
	EnrichmentFailedPending EnrichmentStatus = "failed_pending"
	EnrichmentFailed        EnrichmentStatus = "failed"
)

// IsValid reports whether the status is one of the known values.
func (s EnrichmentStatus) IsValid() bool {
	switch s {
	case EnrichmentPending, EnrichmentSummarized, EnrichmentTagged,
		EnrichmentFailedPending, EnrichmentFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further enrichment will be attempted.
func (s EnrichmentStatus) IsTerminal() bool {
	return s == EnrichmentFailed
}

// Story represents one item ingested from the external content source.
// Stories are created on first sync of an external id and refreshed
// (score, comment count) on re-fetch; they are never deleted by the
// ingestion subsystem.
type Story struct {
	ID              int64            `json:"id"`
	ExternalID      int64            `json:"external_id"`
	Title           string           `json:"title"`
	URL             string           `json:"url,omitempty"`
	Score           int              `json:"score"`
	Author          string           `json:"author"`
	CommentCount    int              `json:"comment_count"`
	SourceCreatedAt time.Time        `json:"source_created_at"`
	Status          EnrichmentStatus `json:"status"`
	AttemptCount    int              `json:"attempt_count"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// NewStory creates a Story in the pending state with the score clamped to
// zero and the URL restricted to http(s) schemes.
// Returns an error if validation fails.
func NewStory(externalID int64, title, rawURL, author string, score, commentCount int, sourceCreatedAt time.Time) (*Story, error) {
	story := &Story{
		ExternalID:      externalID,
		Title:           title,
		URL:             SanitizeURL(rawURL),
		Score:           ClampScore(score),
		Author:          author,
		CommentCount:    commentCount,
		SourceCreatedAt: sourceCreatedAt,
		Status:          EnrichmentPending,
	}

	if err := story.Validate(); err != nil {
		return nil, err
	}

	return story, nil
}

// Validate checks if the Story has valid data.
func (s *Story) Validate() error {
	if s.ExternalID <= 0 {
		return ErrInvalidExternalID
	}

	if strings.TrimSpace(s.Title) == "" {
		return ErrEmptyTitle
	}

	if !s.Status.IsValid() {
		return ErrInvalidStatus
	}

	return nil
}

// ClampScore floors a score at zero; the source occasionally reports
// negative scores for retracted items.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	return score
}

// SanitizeURL rejects non-HTTP(S) URLs to prevent javascript: injection
// when the URL is rendered elsewhere. Returns "" for anything unsafe.
func SanitizeURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return raw
	}
	return ""
}
