package job

import (
	"context"
	"fmt"
	"time"

	"github.com/skimapp/skim-api/internal/config"
	"github.com/skimapp/skim-api/internal/domain"
	"github.com/skimapp/skim-api/internal/platform/logger"
	"github.com/skimapp/skim-api/internal/store"
)

// RecoverySweep retries stories whose enrichment failed but whose attempt
// budget is not exhausted. Selection is by the explicit failed_pending
// status with a grace period, never by summary absence, so a call still
// in flight is never raced. Stories that exhaust their budget are moved
// to the terminal failed state by the store and leave the sweep's view.
type RecoverySweep struct {
	stories  store.StoryStore
	progress store.ProgressStore
	enrich   *EnrichStage
	cfg      config.RecoveryConfig

	now func() time.Time
}

var _ Job = (*RecoverySweep)(nil)

// NewRecoverySweep creates the recovery sweep job.
func NewRecoverySweep(
	stories store.StoryStore,
	progress store.ProgressStore,
	enrich *EnrichStage,
	cfg config.RecoveryConfig,
) *RecoverySweep {
	return &RecoverySweep{
		stories:  stories,
		progress: progress,
		enrich:   enrich,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Name implements Job.
func (j *RecoverySweep) Name() string { return domain.JobRecoverySweep }

// Run selects one bounded batch of stale failed_pending stories, oldest
// first, and re-runs them through the enrichment stage.
func (j *RecoverySweep) Run(ctx context.Context) (domain.RunOutcome, error) {
	log := logger.FromContext(ctx)

	cutoff := j.now().UTC().Add(-j.cfg.GracePeriod)
	stories, err := j.stories.SelectFailedPendingBefore(ctx, cutoff, j.cfg.BatchSize)
	if err != nil {
		return domain.OutcomeFailure, fmt.Errorf("failed to select failed stories: %w", err)
	}
	if len(stories) == 0 {
		log.Debug("no stories awaiting recovery")
		return domain.OutcomeSuccess, nil
	}

	enriched, err := j.enrich.Enrich(ctx, stories)
	if err != nil {
		return domain.OutcomeFailure, err
	}

	if err := j.progress.AddCounts(ctx, j.Name(), int64(len(stories)), 0); err != nil {
		return domain.OutcomeFailure, fmt.Errorf("failed to record counts: %w", err)
	}

	log.Info("recovery sweep finished",
		"selected", len(stories),
		"recovered", enriched)
	return domain.OutcomeSuccess, nil
}
