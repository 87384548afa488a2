package job

import (
	"context"

	"github.com/skimapp/skim-api/internal/domain"
)

// Job is one recurring unit of scheduled work. Run executes a single
// bounded pass and reports its outcome; the scheduler handles the
// surrounding begin/end bookkeeping in the progress store.
type Job interface {
	// Name returns the job's progress record key.
	Name() string

	// Run executes one pass. It returns OutcomeSuccess when the pass
	// finished, OutcomeCompleted when the job has exhausted its work for
	// good (backfill reaching its horizon), and OutcomeFailure with an
	// error otherwise. A failed pass leaves the cursor at the last
	// durably applied position so the next trigger resumes cleanly.
	Run(ctx context.Context) (domain.RunOutcome, error)
}
