package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/skimapp/skim-api/internal/domain"
)

// TagStore defines the interface for tag persistence and the mapping
// updates the taxonomy agent applies on auto-approval.
type TagStore interface {
	// GetOrCreate returns the tag with the given slug, creating it with
	// the provided name/level/category if absent.
	GetOrCreate(ctx context.Context, tag *domain.Tag) (*domain.Tag, error)

	// AttachToStory links tags to a story, ignoring links that already
	// exist. Attaching is idempotent.
	AttachToStory(ctx context.Context, storyID int64, tagIDs []int64) error

	// UsageSince returns every tag together with its usage count over
	// stories whose source timestamp is at or after the cutoff.
	UsageSince(ctx context.Context, since time.Time) ([]domain.TagUsage, error)

	// Merge remaps every story from one tag onto another and deletes the
	// source tag. Returns ErrTagNotFound if either tag is missing.
	Merge(ctx context.Context, fromTagID, intoTagID int64) error

	// Rename changes a tag's name and slug.
	Rename(ctx context.Context, tagID int64, newName, newSlug string) error

	// Retire deletes a tag and its story links.
	Retire(ctx context.Context, tagID int64) error
}

// ProposalStore persists taxonomy agent runs and the proposals they generate.
type ProposalStore interface {
	// CreateRun records the start of an agent run.
	CreateRun(ctx context.Context, run *domain.AgentRun) error

	// FinishRun records an agent run's terminal status and result payload.
	FinishRun(ctx context.Context, runID uuid.UUID, status domain.AgentRunStatus, errMsg string, result json.RawMessage) error

	// CreateProposal persists a new proposal.
	CreateProposal(ctx context.Context, proposal *domain.TagProposal) error

	// UpdateStatus moves a proposal to a new review status.
	// Returns ErrProposalNotFound if the proposal does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ProposalStatus) error

	// List returns proposals filtered by status (empty status means all),
	// newest first.
	List(ctx context.Context, status domain.ProposalStatus, limit int) ([]*domain.TagProposal, error)
}
