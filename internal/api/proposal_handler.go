package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/skimapp/skim-api/internal/domain"
	"github.com/skimapp/skim-api/internal/store"
)

// defaultProposalLimit bounds GET /api/proposals when no limit is given.
const defaultProposalLimit = 50

// ProposalResponse is one taxonomy proposal in the list payload.
type ProposalResponse struct {
	ID              string          `json:"id"`
	AgentRunID      string          `json:"agent_run_id"`
	Action          string          `json:"action"`
	Status          string          `json:"status"`
	Reason          string          `json:"reason"`
	Data            json.RawMessage `json:"data"`
	AffectedStories int             `json:"affected_stories"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ProposalHandler serves the taxonomy proposal review listing.
type ProposalHandler struct {
	proposals store.ProposalStore
	logger    *slog.Logger
}

// NewProposalHandler creates a ProposalHandler.
func NewProposalHandler(proposals store.ProposalStore, logger *slog.Logger) *ProposalHandler {
	return &ProposalHandler{proposals: proposals, logger: logger}
}

// ListProposals handles GET /api/proposals requests. The optional status
// query parameter filters by review state; limit bounds the page size.
func (h *ProposalHandler) ListProposals(w http.ResponseWriter, r *http.Request) {
	status := domain.ProposalStatus(r.URL.Query().Get("status"))
	if status != "" {
		switch status {
		case domain.ProposalProposed, domain.ProposalAutoApproved, domain.ProposalPendingApproval:
		default:
			RespondWithError(w, http.StatusBadRequest, "Unknown proposal status")
			return
		}
	}

	limit := defaultProposalLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			RespondWithError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	proposals, err := h.proposals.List(r.Context(), status, limit)
	if err != nil {
		h.logger.Error("failed to list proposals", "error", err)
		RespondWithError(w, MapErrorToStatusCode(err), "Failed to load proposals")
		return
	}

	response := make([]ProposalResponse, 0, len(proposals))
	for _, proposal := range proposals {
		response = append(response, proposalToResponse(proposal))
	}
	RespondWithJSON(w, http.StatusOK, response)
}

func proposalToResponse(p *domain.TagProposal) ProposalResponse {
	return ProposalResponse{
		ID:              p.ID.String(),
		AgentRunID:      p.AgentRunID.String(),
		Action:          string(p.Action),
		Status:          string(p.Status),
		Reason:          p.Reason,
		Data:            p.Data,
		AffectedStories: p.AffectedStories,
		CreatedAt:       p.CreatedAt,
	}
}
