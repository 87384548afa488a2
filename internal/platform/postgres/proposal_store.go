package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/skimapp/skim-api/internal/domain"
	"github.com/skimapp/skim-api/internal/store"
)

// ProposalStore implements the store.ProposalStore interface using PostgreSQL.
type ProposalStore struct {
	db store.DBTX
}

// NewProposalStore creates a new PostgreSQL implementation of store.ProposalStore.
func NewProposalStore(db store.DBTX) *ProposalStore {
	return &ProposalStore{db: db}
}

// Ensure ProposalStore implements store.ProposalStore.
var _ store.ProposalStore = (*ProposalStore)(nil)

// CreateRun implements store.ProposalStore.CreateRun.
func (s *ProposalStore) CreateRun(ctx context.Context, run *domain.AgentRun) error {
	query := `
		INSERT INTO agent_runs (id, status, started_at)
		VALUES ($1, $2, $3)
	`

	if _, err := s.db.ExecContext(ctx, query, run.ID, run.Status, run.StartedAt); err != nil {
		return fmt.Errorf("failed to create agent run: %w", err)
	}
	return nil
}

// FinishRun implements store.ProposalStore.FinishRun.
func (s *ProposalStore) FinishRun(ctx context.Context, runID uuid.UUID, status domain.AgentRunStatus, errMsg string, result json.RawMessage) error {
	query := `
		UPDATE agent_runs
		SET status = $2, error_message = $3, result = $4, completed_at = now()
		WHERE id = $1
	`

	res, err := s.db.ExecContext(ctx, query, runID, status, nullableString(errMsg), nullableJSON(result))
	if err != nil {
		return fmt.Errorf("failed to finish agent run: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	return nil
}

// CreateProposal implements store.ProposalStore.CreateProposal.
func (s *ProposalStore) CreateProposal(ctx context.Context, proposal *domain.TagProposal) error {
	query := `
		INSERT INTO tag_proposals (id, agent_run_id, action, status, reason,
			data, affected_stories, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		proposal.ID,
		proposal.AgentRunID,
		proposal.Action,
		proposal.Status,
		proposal.Reason,
		[]byte(proposal.Data),
		proposal.AffectedStories,
		proposal.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create tag proposal: %w", err)
	}

	return nil
}

// UpdateStatus implements store.ProposalStore.UpdateStatus.
func (s *ProposalStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ProposalStatus) error {
	query := `UPDATE tag_proposals SET status = $2 WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update proposal status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrProposalNotFound
	}

	return nil
}

// List implements store.ProposalStore.List.
func (s *ProposalStore) List(ctx context.Context, status domain.ProposalStatus, limit int) ([]*domain.TagProposal, error) {
	query := `
		SELECT id, agent_run_id, action, status, reason, data,
			affected_stories, created_at
		FROM tag_proposals
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tag proposals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var proposals []*domain.TagProposal
	for rows.Next() {
		var p domain.TagProposal
		var data []byte
		err := rows.Scan(
			&p.ID,
			&p.AgentRunID,
			&p.Action,
			&p.Status,
			&p.Reason,
			&data,
			&p.AffectedStories,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag proposal: %w", err)
		}
		p.Data = json.RawMessage(data)
		proposals = append(proposals, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tag proposals: %w", err)
	}

	return proposals, nil
}

func nullableJSON(data json.RawMessage) any {
	if len(data) == 0 {
		return nil
	}
	return []byte(data)
}
