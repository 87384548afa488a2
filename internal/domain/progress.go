package domain

import "time"

// RunStatus is the stored state of a job in the progress table.
type RunStatus string

// Possible run status values. completed is used by the backfill job once
// its day horizon is reached; a completed job stays schedulable but its
// body no-ops until the record is reset.
const (
	RunIdle      RunStatus = "idle"
	RunRunning   RunStatus = "running"
	RunError     RunStatus = "error"
	RunCompleted RunStatus = "completed"
)

// IsValid reports whether the status is one of the known values.
func (s RunStatus) IsValid() bool {
	switch s {
	case RunIdle, RunRunning, RunError, RunCompleted:
		return true
	}
	return false
}

// RunOutcome is what a finished job run reports back to the progress store.
type RunOutcome string

// Possible run outcomes.
const (
	OutcomeSuccess   RunOutcome = "success"
	OutcomeFailure   RunOutcome = "failure"
	OutcomeCompleted RunOutcome = "completed"
)

// Job names used as progress record keys.
const (
	JobContinuousSync = "continuous_sync"
	JobBackfill       = "backfill"
	JobRecoverySweep  = "recovery_sweep"
	JobTaxonomyAgent  = "taxonomy_agent"
)

// IsKnownJobName reports whether name is one of the scheduled jobs.
func IsKnownJobName(name string) bool {
	switch name {
	case JobContinuousSync, JobBackfill, JobRecoverySweep, JobTaxonomyAgent:
		return true
	}
	return false
}

// ProgressRecord is the single source of truth for where a job is: its
// cursor into the external id space, whether a run is currently in flight,
// and how often it has failed consecutively.
//
// HasCursor distinguishes "no cursor yet" from a cursor of zero, so jobs
// can tell a fresh record from one that has walked all the way down.
type ProgressRecord struct {
	JobName         string     `json:"job_name"`
	Cursor          int64      `json:"cursor"`
	HasCursor       bool       `json:"has_cursor"`
	Status          RunStatus  `json:"status"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
	FailureCount    int        `json:"failure_count"`
	ItemsProcessed  int64      `json:"items_processed"`
	StoriesIngested int64      `json:"stories_ingested"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
