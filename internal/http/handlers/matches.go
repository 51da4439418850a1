package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/wolfman30/therapymatch/internal/audit"
	"github.com/wolfman30/therapymatch/internal/matching"
	"github.com/wolfman30/therapymatch/pkg/logging"
)

type matchService interface {
	FindMatches(ctx context.Context, requesterID string) ([]matching.MatchResult, error)
	ExistingMatches(ctx context.Context, requesterID string) ([]matching.Match, error)
}

type runLister interface {
	ListRuns(ctx context.Context, requesterID string, limit int) ([]audit.RunRecord, error)
}

// MatchesHandler runs and lists requester matches.
type MatchesHandler struct {
	matches matchService
	runs    runLister
	logger  *logging.Logger
}

// NewMatchesHandler wires the handler. runs may be nil when no audit store is configured.
func NewMatchesHandler(matches matchService, runs runLister, logger *logging.Logger) *MatchesHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &MatchesHandler{matches: matches, runs: runs, logger: logger}
}

// FindMatches runs the matching pipeline and returns the ranked list.
// Route: POST /v1/requesters/{requesterID}/matches
func (h *MatchesHandler) FindMatches(w http.ResponseWriter, r *http.Request) {
	requesterID := pathParam(r, "requesterID")
	if requesterID == "" {
		jsonError(w, "missing requesterID", http.StatusBadRequest)
		return
	}
	results, err := h.matches.FindMatches(r.Context(), requesterID)
	if err != nil {
		h.matchError(w, requesterID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"requesterId": requesterID,
		"matches":     results,
	})
}

// ListMatches returns previously persisted matches.
// Route: GET /v1/requesters/{requesterID}/matches
func (h *MatchesHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	requesterID := pathParam(r, "requesterID")
	if requesterID == "" {
		jsonError(w, "missing requesterID", http.StatusBadRequest)
		return
	}
	matches, err := h.matches.ExistingMatches(r.Context(), requesterID)
	if err != nil {
		h.matchError(w, requesterID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"requesterId": requesterID,
		"matches":     matches,
	})
}

// ListRuns returns the scoring audit trail for a requester.
// Route: GET /v1/requesters/{requesterID}/match-runs?limit=N
func (h *MatchesHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		jsonError(w, "audit trail not configured", http.StatusServiceUnavailable)
		return
	}
	requesterID := pathParam(r, "requesterID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	runs, err := h.runs.ListRuns(r.Context(), requesterID, limit)
	if err != nil {
		h.logger.Error("failed to list match runs", "requester_id", requesterID, "error", err)
		jsonError(w, "failed to list match runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"requesterId": requesterID,
		"runs":        runs,
	})
}

func (h *MatchesHandler) matchError(w http.ResponseWriter, requesterID string, err error) {
	if errors.Is(err, matching.ErrNotFound) {
		jsonError(w, "requester not found", http.StatusNotFound)
		return
	}
	h.logger.Error("matching request failed", "requester_id", requesterID, "error", err)
	jsonError(w, "failed to load matches", http.StatusInternalServerError)
}
