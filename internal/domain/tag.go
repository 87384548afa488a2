package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Tag is a label attached to stories. Tags are leveled: level 1 holds the
// broad canonical categories, level 2 topic tags grouped by category, and
// level 3 free-form specific tags created on demand by the enricher.
type Tag struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	Level      int       `json:"level"`
	Category   string    `json:"category,omitempty"`
	UsageCount int       `json:"usage_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// ProposalAction names the taxonomy maintenance operation a proposal asks for.
type ProposalAction string

// Supported proposal actions.
const (
	ProposalMerge  ProposalAction = "merge"
	ProposalRename ProposalAction = "rename"
	ProposalRetire ProposalAction = "retire"
)

// IsValid reports whether the action is one of the known values.
func (a ProposalAction) IsValid() bool {
	switch a {
	case ProposalMerge, ProposalRename, ProposalRetire:
		return true
	}
	return false
}

// ProposalStatus tracks the review state of a taxonomy proposal.
type ProposalStatus string

// Possible proposal status values. Auto-approved proposals have already
// been applied; pending-approval proposals wait for an external,
// authenticated approval action.
const (
	ProposalProposed        ProposalStatus = "proposed"
	ProposalAutoApproved    ProposalStatus = "auto-approved"
	ProposalPendingApproval ProposalStatus = "pending-approval"
)

// TagProposal is a taxonomy maintenance action generated by the taxonomy
// agent. The Data payload carries the action-specific parameters (source
// and target tags for merges, new name for renames).
type TagProposal struct {
	ID              uuid.UUID       `json:"id"`
	AgentRunID      uuid.UUID       `json:"agent_run_id"`
	Action          ProposalAction  `json:"action"`
	Status          ProposalStatus  `json:"status"`
	Reason          string          `json:"reason"`
	Data            json.RawMessage `json:"data"`
	AffectedStories int             `json:"affected_stories"`
	CreatedAt       time.Time       `json:"created_at"`
}

// NewTagProposal creates a proposal in the proposed state.
// Returns an error if the action is unknown.
func NewTagProposal(runID uuid.UUID, action ProposalAction, reason string, data json.RawMessage, affected int) (*TagProposal, error) {
	if !action.IsValid() {
		return nil, ErrInvalidProposalAction
	}

	return &TagProposal{
		ID:              uuid.New(),
		AgentRunID:      runID,
		Action:          action,
		Status:          ProposalProposed,
		Reason:          reason,
		Data:            data,
		AffectedStories: affected,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// AgentRunStatus tracks the lifecycle of one taxonomy agent execution.
type AgentRunStatus string

// Possible agent run status values.
const (
	AgentRunRunning   AgentRunStatus = "running"
	AgentRunCompleted AgentRunStatus = "completed"
	AgentRunFailed    AgentRunStatus = "failed"
)

// AgentRun records one execution of the taxonomy agent and owns the
// proposals it generated.
type AgentRun struct {
	ID          uuid.UUID       `json:"id"`
	Status      AgentRunStatus  `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Error       string          `json:"error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// NewAgentRun creates a running AgentRun.
func NewAgentRun() *AgentRun {
	return &AgentRun{
		ID:        uuid.New(),
		Status:    AgentRunRunning,
		StartedAt: time.Now().UTC(),
	}
}

// TagUsage is one row of the agent's analysis input: a tag plus its usage
// count restricted to the analysis window.
type TagUsage struct {
	Tag         Tag `json:"tag"`
	RecentCount int `json:"recent_count"`
}
