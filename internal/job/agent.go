package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/skimapp/skim-api/internal/config"
	"github.com/skimapp/skim-api/internal/domain"
	"github.com/skimapp/skim-api/internal/platform/logger"
	"github.com/skimapp/skim-api/internal/store"
	"github.com/skimapp/skim-api/internal/taxonomy"
)

// similarityThreshold is how alike two tag slugs must be before the agent
// proposes merging them.
const similarityThreshold = 0.85

// MergeData is the payload of a merge proposal.
type MergeData struct {
	FromTagID int64  `json:"from_tag_id"`
	FromSlug  string `json:"from_slug"`
	IntoTagID int64  `json:"into_tag_id"`
	IntoSlug  string `json:"into_slug"`
}

// RenameData is the payload of a rename proposal.
type RenameData struct {
	TagID   int64  `json:"tag_id"`
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
	NewSlug string `json:"new_slug"`
}

// RetireData is the payload of a retire proposal.
type RetireData struct {
	TagID int64  `json:"tag_id"`
	Slug  string `json:"slug"`
}

// TaxonomyAgent periodically analyzes tag usage over a recent window and
// proposes maintenance actions: renaming tags to their canonical
// spelling, merging near-duplicates, and retiring sparse free-form tags.
// Proposals whose blast radius fits under the auto-approve ceiling are
// applied immediately when auto-approval is on; everything else waits
// for external review.
type TaxonomyAgent struct {
	tags      store.TagStore
	proposals store.ProposalStore
	cfg       config.AgentConfig

	now func() time.Time
}

var _ Job = (*TaxonomyAgent)(nil)

// NewTaxonomyAgent creates the taxonomy maintenance agent.
func NewTaxonomyAgent(tags store.TagStore, proposals store.ProposalStore, cfg config.AgentConfig) *TaxonomyAgent {
	return &TaxonomyAgent{
		tags:      tags,
		proposals: proposals,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Name implements Job.
func (j *TaxonomyAgent) Name() string { return domain.JobTaxonomyAgent }

// Run performs one analysis pass. Every pass is recorded as an AgentRun
// owning the proposals it generated, so the review surface can show when
// and why each proposal appeared.
func (j *TaxonomyAgent) Run(ctx context.Context) (domain.RunOutcome, error) {
	log := logger.FromContext(ctx)

	run := domain.NewAgentRun()
	if err := j.proposals.CreateRun(ctx, run); err != nil {
		return domain.OutcomeFailure, fmt.Errorf("failed to create agent run: %w", err)
	}

	window := j.now().UTC().AddDate(0, 0, -j.cfg.WindowDays)
	usage, err := j.tags.UsageSince(ctx, window)
	if err != nil {
		j.failRun(ctx, run, err)
		return domain.OutcomeFailure, fmt.Errorf("failed to analyze tag usage: %w", err)
	}

	candidates, err := j.analyze(run, usage)
	if err != nil {
		j.failRun(ctx, run, err)
		return domain.OutcomeFailure, err
	}
	if len(candidates) > j.cfg.MaxProposals {
		candidates = candidates[:j.cfg.MaxProposals]
	}

	applied := 0
	for _, proposal := range candidates {
		if err := j.proposals.CreateProposal(ctx, proposal); err != nil {
			j.failRun(ctx, run, err)
			return domain.OutcomeFailure, fmt.Errorf("failed to store proposal: %w", err)
		}

		status := domain.ProposalPendingApproval
		if j.cfg.AutoApprove && proposal.AffectedStories <= j.cfg.AutoApproveCeiling {
			if err := j.apply(ctx, proposal); err != nil {
				log.Warn("failed to apply proposal, leaving it for review",
					"proposal_id", proposal.ID,
					"action", proposal.Action,
					"error", err)
			} else {
				status = domain.ProposalAutoApproved
				applied++
			}
		}
		if err := j.proposals.UpdateStatus(ctx, proposal.ID, status); err != nil {
			j.failRun(ctx, run, err)
			return domain.OutcomeFailure, fmt.Errorf("failed to update proposal status: %w", err)
		}
	}

	result, err := json.Marshal(map[string]int{
		"tags_analyzed": len(usage),
		"proposals":     len(candidates),
		"auto_applied":  applied,
	})
	if err != nil {
		return domain.OutcomeFailure, fmt.Errorf("failed to encode run result: %w", err)
	}
	if err := j.proposals.FinishRun(ctx, run.ID, domain.AgentRunCompleted, "", result); err != nil {
		return domain.OutcomeFailure, fmt.Errorf("failed to finish agent run: %w", err)
	}

	log.Info("taxonomy agent pass finished",
		"tags_analyzed", len(usage),
		"proposals", len(candidates),
		"auto_applied", applied)
	return domain.OutcomeSuccess, nil
}

// analyze turns the usage rows into proposals: canonical renames first,
// then duplicate merges, then sparse retirements. A tag takes part in at
// most one proposal per run.
func (j *TaxonomyAgent) analyze(run *domain.AgentRun, usage []domain.TagUsage) ([]*domain.TagProposal, error) {
	var proposals []*domain.TagProposal
	claimed := make(map[int64]bool, len(usage))

	addProposal := func(action domain.ProposalAction, reason string, data any, affected int, tagIDs ...int64) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to encode proposal data: %w", err)
		}
		proposal, err := domain.NewTagProposal(run.ID, action, reason, payload, affected)
		if err != nil {
			return err
		}
		proposals = append(proposals, proposal)
		for _, id := range tagIDs {
			claimed[id] = true
		}
		return nil
	}

	// Canonical spelling drift.
	for _, u := range usage {
		if claimed[u.Tag.ID] {
			continue
		}
		canonical, ok := taxonomy.CanonicalName(u.Tag.Slug)
		if !ok || u.Tag.Name == canonical {
			continue
		}
		err := addProposal(domain.ProposalRename,
			fmt.Sprintf("tag %q does not match canonical spelling %q", u.Tag.Name, canonical),
			RenameData{TagID: u.Tag.ID, OldName: u.Tag.Name, NewName: canonical, NewSlug: u.Tag.Slug},
			u.RecentCount, u.Tag.ID)
		if err != nil {
			return nil, err
		}
	}

	// Near-duplicate pairs, by edit distance or by whole-component
	// containment ("ai" and "ai-ml"). The lesser-used tag merges into
	// the more used one; a canonical (level 1/2) tag is always the merge
	// target and never the source, regardless of usage.
	for i := 0; i < len(usage); i++ {
		for k := i + 1; k < len(usage); k++ {
			a, b := usage[i], usage[k]
			if claimed[a.Tag.ID] || claimed[b.Tag.ID] {
				continue
			}
			if taxonomy.Similarity(a.Tag.Slug, b.Tag.Slug) <= similarityThreshold &&
				!taxonomy.IsSubstring(a.Tag.Slug, b.Tag.Slug) {
				continue
			}

			from, into := a, b
			if from.Tag.Level < into.Tag.Level ||
				(from.Tag.Level == into.Tag.Level && from.RecentCount > into.RecentCount) {
				from, into = into, from
			}
			if from.Tag.Level < 3 {
				// Both sides are canonical; leave them alone.
				continue
			}
			err := addProposal(domain.ProposalMerge,
				fmt.Sprintf("tags %q and %q look like duplicates", from.Tag.Slug, into.Tag.Slug),
				MergeData{
					FromTagID: from.Tag.ID, FromSlug: from.Tag.Slug,
					IntoTagID: into.Tag.ID, IntoSlug: into.Tag.Slug,
				},
				from.RecentCount, from.Tag.ID, into.Tag.ID)
			if err != nil {
				return nil, err
			}
		}
	}

	// Sparse free-form tags.
	for _, u := range usage {
		if claimed[u.Tag.ID] || u.Tag.Level < 3 {
			continue
		}
		if u.RecentCount >= j.cfg.MinTagUsage {
			continue
		}
		err := addProposal(domain.ProposalRetire,
			fmt.Sprintf("tag %q used %d times in the last %d days, below the minimum of %d",
				u.Tag.Slug, u.RecentCount, j.cfg.WindowDays, j.cfg.MinTagUsage),
			RetireData{TagID: u.Tag.ID, Slug: u.Tag.Slug},
			u.RecentCount, u.Tag.ID)
		if err != nil {
			return nil, err
		}
	}

	return proposals, nil
}

// apply executes an approved proposal against the tag store.
func (j *TaxonomyAgent) apply(ctx context.Context, proposal *domain.TagProposal) error {
	switch proposal.Action {
	case domain.ProposalMerge:
		var data MergeData
		if err := json.Unmarshal(proposal.Data, &data); err != nil {
			return fmt.Errorf("invalid merge payload: %w", err)
		}
		return j.tags.Merge(ctx, data.FromTagID, data.IntoTagID)
	case domain.ProposalRename:
		var data RenameData
		if err := json.Unmarshal(proposal.Data, &data); err != nil {
			return fmt.Errorf("invalid rename payload: %w", err)
		}
		return j.tags.Rename(ctx, data.TagID, data.NewName, data.NewSlug)
	case domain.ProposalRetire:
		var data RetireData
		if err := json.Unmarshal(proposal.Data, &data); err != nil {
			return fmt.Errorf("invalid retire payload: %w", err)
		}
		return j.tags.Retire(ctx, data.TagID)
	default:
		return domain.ErrInvalidProposalAction
	}
}

// failRun marks the agent run failed, best effort.
func (j *TaxonomyAgent) failRun(ctx context.Context, run *domain.AgentRun, cause error) {
	log := logger.FromContext(ctx)
	if err := j.proposals.FinishRun(ctx, run.ID, domain.AgentRunFailed, cause.Error(), nil); err != nil {
		log.Error("failed to record agent run failure", "run_id", run.ID, "error", err)
	}
}
