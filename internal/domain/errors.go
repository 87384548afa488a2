// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidExternalID is returned when a story's external id is not positive.
	ErrInvalidExternalID = errors.New("external id must be positive")

	// ErrEmptyTitle is returned when a story has no title.
	ErrEmptyTitle = errors.New("story title cannot be empty")

	// ErrInvalidStatus is returned when an enrichment status is not one of
	// the known values.
	ErrInvalidStatus = errors.New("invalid enrichment status")

	// ErrInvalidRunStatus is returned when a progress run status is not one
	// of the known values.
	ErrInvalidRunStatus = errors.New("invalid run status")

	// ErrInvalidProposalAction is returned when a taxonomy proposal names an
	// unknown action.
	ErrInvalidProposalAction = errors.New("invalid proposal action")
)
