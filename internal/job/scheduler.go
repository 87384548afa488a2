package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/skimapp/skim-api/internal/domain"
	"github.com/skimapp/skim-api/internal/platform/logger"
	"github.com/skimapp/skim-api/internal/store"
)

// Scheduler triggers jobs on fixed intervals and brackets every run with
// the progress store's begin/end bookkeeping. The TryBeginRun gate makes
// overlapping triggers of the same job collapse to one run, including
// across processes sharing the database.
type Scheduler struct {
	cron     *cron.Cron
	logger   *slog.Logger
	progress store.ProgressStore
}

// NewScheduler creates a Scheduler. Jobs are registered with Register
// before calling Start.
func NewScheduler(log *slog.Logger, progress store.ProgressStore) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		logger:   log,
		progress: progress,
	}
}

// Register schedules a job to trigger every interval. The first trigger
// fires one interval after Start.
func (s *Scheduler) Register(j Job, interval time.Duration) {
	s.cron.Schedule(cron.Every(interval), cron.FuncJob(func() {
		s.runOnce(j)
	}))
}

// runOnce executes one gated pass of a job.
func (s *Scheduler) runOnce(j Job) {
	log := s.logger.With("job", j.Name())
	ctx := logger.WithContext(context.Background(), log)

	acquired, err := s.progress.TryBeginRun(ctx, j.Name())
	if err != nil {
		log.Error("failed to acquire run gate", "error", err)
		return
	}
	if !acquired {
		log.Debug("skipping trigger, job busy or completed")
		return
	}

	outcome, err := j.Run(ctx)
	if err != nil {
		log.Error("job run failed", "error", err)
		if ferr := s.progress.RecordFailure(ctx, j.Name()); ferr != nil {
			log.Error("failed to record job failure", "error", ferr)
		}
		outcome = domain.OutcomeFailure
	}
	if err := s.progress.EndRun(ctx, j.Name(), outcome); err != nil {
		log.Error("failed to end run", "outcome", outcome, "error", err)
	}
}

// Start begins triggering registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops triggering and waits for in-flight runs to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
