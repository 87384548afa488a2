package generation

import "errors"

// Common errors returned by Enricher implementations.
var (
	// ErrEnrichmentFailed is returned when an enrichment call fails for
	// any general reason. The calling job absorbs it by marking the
	// whole batch failed_pending; it is never raised past a job boundary.
	ErrEnrichmentFailed = errors.New("failed to enrich story batch")

	// ErrInvalidResponse is returned when the model response cannot be
	// parsed or does not cover the requested stories.
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the model refuses the content
	// due to safety filters.
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrInvalidConfig is returned when the enricher configuration is invalid.
	ErrInvalidConfig = errors.New("invalid enricher configuration")
)
