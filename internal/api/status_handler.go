package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skimapp/skim-api/internal/domain"
	"github.com/skimapp/skim-api/internal/store"
)

// failureWindow bounds the recent-failure count surfaced by the status
// endpoint.
const failureWindow = 24 * time.Hour

// JobStatusResponse is one job's progress in the status payload.
type JobStatusResponse struct {
	JobName         string     `json:"job_name"`
	Status          string     `json:"status"`
	Cursor          *int64     `json:"cursor,omitempty"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
	FailureCount    int        `json:"failure_count"`
	ItemsProcessed  int64      `json:"items_processed"`
	StoriesIngested int64      `json:"stories_ingested"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	StoryCount     int64               `json:"story_count"`
	RecentFailures int64               `json:"recent_failures"`
	Jobs           []JobStatusResponse `json:"jobs"`
}

// StatusHandler serves the ingestion pipeline's monitoring endpoints.
type StatusHandler struct {
	stories  store.StoryStore
	progress store.ProgressStore
	ledger   store.FailureLedger
	logger   *slog.Logger
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(stories store.StoryStore, progress store.ProgressStore, ledger store.FailureLedger, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		stories:  stories,
		progress: progress,
		ledger:   ledger,
		logger:   logger,
	}
}

// Healthz handles GET /healthz requests.
func (h *StatusHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetStatus handles GET /api/status requests.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	count, err := h.stories.Count(ctx)
	if err != nil {
		h.logger.Error("failed to count stories", "error", err)
		RespondWithError(w, MapErrorToStatusCode(err), "Failed to load status")
		return
	}

	failures, err := h.ledger.CountSince(ctx, time.Now().UTC().Add(-failureWindow))
	if err != nil {
		h.logger.Error("failed to count recent failures", "error", err)
		RespondWithError(w, MapErrorToStatusCode(err), "Failed to load status")
		return
	}

	records, err := h.progress.List(ctx)
	if err != nil {
		h.logger.Error("failed to list progress records", "error", err)
		RespondWithError(w, MapErrorToStatusCode(err), "Failed to load status")
		return
	}

	response := StatusResponse{
		StoryCount:     count,
		RecentFailures: failures,
		Jobs:           make([]JobStatusResponse, 0, len(records)),
	}
	for _, rec := range records {
		response.Jobs = append(response.Jobs, progressToResponse(rec))
	}

	RespondWithJSON(w, http.StatusOK, response)
}

// ResetJob handles POST /api/jobs/{job}/reset requests. Resetting clears
// a job's cursor and returns it to idle, which is how a completed
// backfill is made runnable again. A job with a run in flight cannot be
// reset.
func (h *StatusHandler) ResetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobName := chi.URLParam(r, "job")
	if !domain.IsKnownJobName(jobName) {
		RespondWithError(w, http.StatusNotFound, "Unknown job")
		return
	}

	rec, err := h.progress.Get(ctx, jobName)
	if err != nil && !errors.Is(err, store.ErrProgressNotFound) {
		h.logger.Error("failed to load progress for reset", "job_name", jobName, "error", err)
		RespondWithError(w, MapErrorToStatusCode(err), "Failed to reset job")
		return
	}
	if rec != nil && rec.Status == domain.RunRunning {
		RespondWithError(w, http.StatusConflict, "Job is currently running")
		return
	}

	if err := h.progress.Reset(ctx, jobName); err != nil {
		h.logger.Error("failed to reset job", "job_name", jobName, "error", err)
		RespondWithError(w, MapErrorToStatusCode(err), "Failed to reset job")
		return
	}

	h.logger.Info("job progress reset", "job_name", jobName)
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "reset", "job_name": jobName})
}

func progressToResponse(rec *domain.ProgressRecord) JobStatusResponse {
	resp := JobStatusResponse{
		JobName:         rec.JobName,
		Status:          string(rec.Status),
		LastRunAt:       rec.LastRunAt,
		FailureCount:    rec.FailureCount,
		ItemsProcessed:  rec.ItemsProcessed,
		StoriesIngested: rec.StoriesIngested,
	}
	if rec.HasCursor {
		cursor := rec.Cursor
		resp.Cursor = &cursor
	}
	return resp
}
