package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrUpdateFailed is returned when an update operation fails, for example
	// because the entity does not exist or the update violates constraints.
	ErrUpdateFailed = errors.New("update failed")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrStoryNotFound indicates that the requested story does not exist.
	ErrStoryNotFound = fmt.Errorf("%w: story", ErrNotFound)

	// ErrTagNotFound indicates that the requested tag does not exist.
	ErrTagNotFound = fmt.Errorf("%w: tag", ErrNotFound)

	// ErrProgressNotFound indicates that no progress record exists yet for
	// a job name. Jobs treat this as "no cursor yet", not as a failure.
	ErrProgressNotFound = fmt.Errorf("%w: progress record", ErrNotFound)

	// ErrProposalNotFound indicates that the requested proposal does not exist.
	ErrProposalNotFound = fmt.Errorf("%w: tag proposal", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
