package job

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/skimapp/skim-api/internal/config"
	"github.com/skimapp/skim-api/internal/domain"
	"github.com/skimapp/skim-api/internal/hn"
	"github.com/skimapp/skim-api/internal/platform/logger"
	"github.com/skimapp/skim-api/internal/store"
)

// Ledger reason strings for ids the sync jobs could not turn into stories.
const (
	skipReasonMissing     = "missing"
	skipReasonUnavailable = "unavailable"
	skipReasonInvalid     = "invalid"
	skipReasonTransient   = "transient"
)

// ContinuousSync walks the external id space forward from its cursor
// toward the source's max id, one bounded batch per run. New stories are
// handed to the enrichment stage; the cursor only advances past ids whose
// handling is durable.
type ContinuousSync struct {
	source   hn.Source
	stories  store.StoryStore
	progress store.ProgressStore
	ledger   store.FailureLedger
	enrich   *EnrichStage
	limiter  *rate.Limiter
	cfg      config.SyncConfig
}

var _ Job = (*ContinuousSync)(nil)

// NewContinuousSync creates the continuous forward-sync job.
func NewContinuousSync(
	source hn.Source,
	stories store.StoryStore,
	progress store.ProgressStore,
	ledger store.FailureLedger,
	enrich *EnrichStage,
	cfg config.SyncConfig,
) *ContinuousSync {
	return &ContinuousSync{
		source:   source,
		stories:  stories,
		progress: progress,
		ledger:   ledger,
		enrich:   enrich,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		cfg:      cfg,
	}
}

// Name implements Job.
func (j *ContinuousSync) Name() string { return domain.JobContinuousSync }

// Run processes at most one batch of ids above the cursor. A first run
// initializes the cursor just below the source's current max id, so the
// job tracks new items rather than replaying history (that is the
// backfill's job).
//
// Permanently unusable ids (missing items, invalid payloads) are recorded
// in the failure ledger and the cursor passes them. A transient fetch
// failure that survives the client's retry budget halts the run instead:
// the cursor stops just below the failed id and the next trigger retries
// it, so no id is ever skipped while it might still resolve.
func (j *ContinuousSync) Run(ctx context.Context) (domain.RunOutcome, error) {
	log := logger.FromContext(ctx)

	maxID, err := j.source.MaxItemID(ctx)
	if err != nil {
		return domain.OutcomeFailure, fmt.Errorf("failed to read source max id: %w", err)
	}

	cursor, err := j.loadCursor(ctx, maxID)
	if err != nil {
		return domain.OutcomeFailure, err
	}
	if cursor >= maxID {
		log.Debug("no new items", "cursor", cursor, "max_id", maxID)
		return domain.OutcomeSuccess, nil
	}

	upper := min(cursor+int64(j.cfg.BatchSize), maxID)

	var (
		processed int64
		ingested  int64
		fresh     []*domain.Story
		halted    error
	)
	durable := cursor

	for id := cursor + 1; id <= upper; id++ {
		if err := j.limiter.Wait(ctx); err != nil {
			halted = err
			break
		}

		story, skip, err := fetchStory(ctx, j.source, j.ledger, id)
		if err != nil {
			halted = err
			break
		}
		processed++
		durable = id
		if skip || story == nil {
			continue
		}

		stored, created, err := j.stories.Upsert(ctx, story)
		if err != nil {
			// The id itself was fine but nothing durable happened, so
			// leave the cursor below it.
			processed--
			durable = id - 1
			halted = fmt.Errorf("failed to upsert story %d: %w", id, err)
			break
		}
		if created {
			ingested++
			fresh = append(fresh, stored)
		}
	}

	enriched, err := j.enrich.Enrich(ctx, fresh)
	if err != nil {
		return domain.OutcomeFailure, err
	}

	if durable > cursor {
		if err := j.progress.AdvanceCursor(ctx, j.Name(), durable); err != nil {
			return domain.OutcomeFailure, fmt.Errorf("failed to advance cursor: %w", err)
		}
		if err := j.progress.AddCounts(ctx, j.Name(), processed, ingested); err != nil {
			return domain.OutcomeFailure, fmt.Errorf("failed to record counts: %w", err)
		}
	}

	log.Info("sync pass finished",
		"cursor", durable,
		"max_id", maxID,
		"processed", processed,
		"ingested", ingested,
		"enriched", enriched)

	if halted != nil {
		return domain.OutcomeFailure, halted
	}
	return domain.OutcomeSuccess, nil
}

// loadCursor returns the stored cursor, initializing a fresh record to
// just below the current max id.
func (j *ContinuousSync) loadCursor(ctx context.Context, maxID int64) (int64, error) {
	rec, err := j.progress.Get(ctx, j.Name())
	if err != nil && !errors.Is(err, store.ErrProgressNotFound) {
		return 0, fmt.Errorf("failed to load progress: %w", err)
	}
	if rec != nil && rec.HasCursor {
		return rec.Cursor, nil
	}

	cursor := maxID - 1
	if cursor < 0 {
		cursor = 0
	}
	if err := j.progress.AdvanceCursor(ctx, j.Name(), cursor); err != nil {
		return 0, fmt.Errorf("failed to initialize cursor: %w", err)
	}
	return cursor, nil
}

// fetchStory fetches one id and classifies the result: a story to ingest,
// a permanent skip (recorded in the ledger, second return true), or an
// error that must halt the run. Non-story items (comments, jobs, polls)
// are skipped silently; they are expected, not failures.
func fetchStory(ctx context.Context, source hn.Source, ledger store.FailureLedger, id int64) (*domain.Story, bool, error) {
	log := logger.FromContext(ctx)

	item, err := source.FetchItem(ctx, id)
	switch {
	case errors.Is(err, hn.ErrItemMissing):
		if err := ledger.Record(ctx, id, skipReasonMissing); err != nil {
			return nil, false, fmt.Errorf("failed to record skipped id %d: %w", id, err)
		}
		return nil, true, nil
	case errors.Is(err, hn.ErrItemUnavailable):
		log.Warn("source refused item, skipping", "external_id", id, "error", err)
		if err := ledger.Record(ctx, id, skipReasonUnavailable); err != nil {
			return nil, false, fmt.Errorf("failed to record refused id %d: %w", id, err)
		}
		return nil, true, nil
	case err != nil:
		if recErr := ledger.Record(ctx, id, skipReasonTransient); recErr != nil {
			return nil, false, fmt.Errorf("failed to record failed id %d: %w", id, recErr)
		}
		return nil, false, fmt.Errorf("fetch of item %d failed: %w", id, err)
	}

	if !item.IsStory() {
		return nil, false, nil
	}

	story, err := domain.NewStory(
		item.ID, item.Title, item.URL, item.By,
		item.Score, item.Descendants, item.CreatedAt(),
	)
	if err != nil {
		log.Warn("skipping invalid story payload", "external_id", id, "error", err)
		if err := ledger.Record(ctx, id, skipReasonInvalid); err != nil {
			return nil, false, fmt.Errorf("failed to record invalid id %d: %w", id, err)
		}
		return nil, true, nil
	}
	return story, false, nil
}
