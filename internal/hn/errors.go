package hn

import "errors"

// Fetch error taxonomy. Transient errors (timeouts, 5xx, rate limiting)
// are retried with exponential backoff inside the client; the sentinels
// below are permanent and callers skip the item without retrying.
var (
	// ErrItemMissing is returned when the source reports no item for an
	// id (a null body or a 404). The id is skipped permanently.
	ErrItemMissing = errors.New("item does not exist at source")

	// ErrItemUnavailable wraps unexpected non-retryable responses (a 4xx
	// other than 404 or 429). Retrying the same request would get the
	// same refusal, so the id is skipped permanently rather than halting
	// the cursor behind it forever.
	ErrItemUnavailable = errors.New("source refused the item")

	// ErrTransient wraps errors that survived the retry budget. The id
	// stays retry-pending: callers record it and must not advance their
	// cursor past it.
	ErrTransient = errors.New("transient fetch error")
)

// IsPermanent reports whether the error means the item can never be
// fetched and should be skipped without retry.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrItemMissing) || errors.Is(err, ErrItemUnavailable)
}
