package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/skimapp/skim-api/internal/config"
	"github.com/skimapp/skim-api/internal/domain"
	"github.com/skimapp/skim-api/internal/hn"
	"github.com/skimapp/skim-api/internal/platform/logger"
	"github.com/skimapp/skim-api/internal/store"
)

// Backfill walks the external id space downward from its starting point,
// ingesting historical stories until it reaches items older than the
// configured day horizon. Each run processes at most BatchSize times
// MaxBatches ids; the cursor marks the lowest id already handled, so runs
// resume where the previous one stopped.
//
// Once the horizon is reached the job reports itself completed and stays
// dormant until its progress record is reset.
type Backfill struct {
	source   hn.Source
	stories  store.StoryStore
	progress store.ProgressStore
	ledger   store.FailureLedger
	enrich   *EnrichStage
	limiter  *rate.Limiter
	cfg      config.BackfillConfig

	// now is swappable for tests.
	now func() time.Time
}

var _ Job = (*Backfill)(nil)

// NewBackfill creates the historical backfill job.
func NewBackfill(
	source hn.Source,
	stories store.StoryStore,
	progress store.ProgressStore,
	ledger store.FailureLedger,
	enrich *EnrichStage,
	cfg config.BackfillConfig,
) *Backfill {
	return &Backfill{
		source:   source,
		stories:  stories,
		progress: progress,
		ledger:   ledger,
		enrich:   enrich,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Name implements Job.
func (j *Backfill) Name() string { return domain.JobBackfill }

// Run processes up to MaxBatches batches of descending ids. Ids that
// already have story rows are skipped without refetching. The cursor
// advances (downward) only after a batch's stories and enrichment are
// durably applied; a transient fetch failure halts the run above the
// failed id so the next trigger retries it.
func (j *Backfill) Run(ctx context.Context) (domain.RunOutcome, error) {
	log := logger.FromContext(ctx)

	cursor, err := j.loadCursor(ctx)
	if err != nil {
		return domain.OutcomeFailure, err
	}
	horizon := j.now().UTC().AddDate(0, 0, -j.cfg.HorizonDays)

	for batch := 0; batch < j.cfg.MaxBatches; batch++ {
		if cursor <= 1 {
			log.Info("backfill reached the bottom of the id space")
			return domain.OutcomeCompleted, nil
		}

		outcome, next, err := j.runBatch(ctx, cursor, horizon)
		if err != nil {
			return domain.OutcomeFailure, err
		}
		cursor = next
		if outcome == domain.OutcomeCompleted {
			log.Info("backfill reached its horizon", "cursor", cursor, "horizon", horizon)
			return domain.OutcomeCompleted, nil
		}
	}

	log.Info("backfill pass finished", "cursor", cursor)
	return domain.OutcomeSuccess, nil
}

// runBatch handles one descending batch below cursor (exclusive). It
// returns the new cursor, and OutcomeCompleted once an item at or beyond
// the horizon is seen.
func (j *Backfill) runBatch(ctx context.Context, cursor int64, horizon time.Time) (domain.RunOutcome, int64, error) {
	lower := max(cursor-int64(j.cfg.BatchSize), 0)

	ids := make([]int64, 0, j.cfg.BatchSize)
	for id := cursor - 1; id >= lower && id >= 1; id-- {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return domain.OutcomeCompleted, cursor, nil
	}

	existing, err := j.stories.ExistingExternalIDs(ctx, ids)
	if err != nil {
		return domain.OutcomeFailure, cursor, fmt.Errorf("failed to check known ids: %w", err)
	}

	var (
		processed   int64
		ingested    int64
		fresh       []*domain.Story
		pastHorizon bool
	)
	durable := cursor

	for _, id := range ids {
		if existing[id] {
			processed++
			durable = id
			continue
		}

		if err := j.limiter.Wait(ctx); err != nil {
			return domain.OutcomeFailure, cursor, err
		}

		item, err := j.source.FetchItem(ctx, id)
		switch {
		case errors.Is(err, hn.ErrItemMissing):
			if err := j.ledger.Record(ctx, id, skipReasonMissing); err != nil {
				return domain.OutcomeFailure, cursor, fmt.Errorf("failed to record skipped id %d: %w", id, err)
			}
			processed++
			durable = id
			continue
		case errors.Is(err, hn.ErrItemUnavailable):
			if err := j.ledger.Record(ctx, id, skipReasonUnavailable); err != nil {
				return domain.OutcomeFailure, cursor, fmt.Errorf("failed to record refused id %d: %w", id, err)
			}
			processed++
			durable = id
			continue
		case err != nil:
			if recErr := j.ledger.Record(ctx, id, skipReasonTransient); recErr != nil {
				return domain.OutcomeFailure, cursor, fmt.Errorf("failed to record failed id %d: %w", id, recErr)
			}
			return domain.OutcomeFailure, cursor, j.finishBatch(ctx, cursor, durable, processed, ingested, fresh,
				fmt.Errorf("fetch of item %d failed: %w", id, err))
		}

		processed++
		durable = id

		// Any item older than the horizon means everything below it is
		// older still; the walk is done.
		if !item.CreatedAt().IsZero() && item.CreatedAt().Before(horizon) {
			pastHorizon = true
			break
		}

		if !item.IsStory() {
			continue
		}

		story, err := domain.NewStory(
			item.ID, item.Title, item.URL, item.By,
			item.Score, item.Descendants, item.CreatedAt(),
		)
		if err != nil {
			if err := j.ledger.Record(ctx, id, skipReasonInvalid); err != nil {
				return domain.OutcomeFailure, cursor, fmt.Errorf("failed to record invalid id %d: %w", id, err)
			}
			continue
		}

		stored, created, err := j.stories.Upsert(ctx, story)
		if err != nil {
			processed--
			durable = id + 1
			return domain.OutcomeFailure, cursor, j.finishBatch(ctx, cursor, durable, processed, ingested, fresh,
				fmt.Errorf("failed to upsert story %d: %w", id, err))
		}
		if created {
			ingested++
			fresh = append(fresh, stored)
		}
	}

	if err := j.finishBatch(ctx, cursor, durable, processed, ingested, fresh, nil); err != nil {
		return domain.OutcomeFailure, cursor, err
	}
	if pastHorizon {
		return domain.OutcomeCompleted, durable, nil
	}
	return domain.OutcomeSuccess, durable, nil
}

// finishBatch enriches the batch's new stories and commits the cursor and
// counters. When called on the halt path it wraps the halting error so
// the caller returns a single failure.
func (j *Backfill) finishBatch(
	ctx context.Context,
	cursor, durable int64,
	processed, ingested int64,
	fresh []*domain.Story,
	halt error,
) error {
	if _, err := j.enrich.Enrich(ctx, fresh); err != nil {
		return err
	}
	if durable < cursor {
		if err := j.progress.AdvanceCursor(ctx, j.Name(), durable); err != nil {
			return fmt.Errorf("failed to advance cursor: %w", err)
		}
		if err := j.progress.AddCounts(ctx, j.Name(), processed, ingested); err != nil {
			return fmt.Errorf("failed to record counts: %w", err)
		}
	}
	return halt
}

// loadCursor returns the stored cursor. A fresh record starts from the
// configured start id when one is pinned, otherwise from the source's
// current max id.
func (j *Backfill) loadCursor(ctx context.Context) (int64, error) {
	rec, err := j.progress.Get(ctx, j.Name())
	if err != nil && !errors.Is(err, store.ErrProgressNotFound) {
		return 0, fmt.Errorf("failed to load progress: %w", err)
	}
	if rec != nil && rec.HasCursor {
		return rec.Cursor, nil
	}

	cursor := j.cfg.StartID
	if cursor == 0 {
		maxID, err := j.source.MaxItemID(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to read source max id: %w", err)
		}
		cursor = maxID
	}
	if err := j.progress.AdvanceCursor(ctx, j.Name(), cursor); err != nil {
		return 0, fmt.Errorf("failed to initialize cursor: %w", err)
	}
	return cursor, nil
}
