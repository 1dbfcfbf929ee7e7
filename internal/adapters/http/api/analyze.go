package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/quorumlabs/quorum/internal/app"
	"github.com/quorumlabs/quorum/internal/domain/model"
)

// AnalyzeHandler handles analysis dispatch requests.
type AnalyzeHandler struct {
	deps Dependencies
}

// NewAnalyzeHandler creates a new analyze handler.
func NewAnalyzeHandler(deps Dependencies) *AnalyzeHandler {
	return &AnalyzeHandler{deps: deps}
}

// analyzeRequest mirrors the inbound dispatcher contract.
type analyzeRequest struct {
	Query       string `json:"query"`
	Target      string `json:"target,omitempty"`
	Budget      int    `json:"budget"`
	RequesterID string `json:"requester_id"`
	Priority    string `json:"priority,omitempty"`
}

func (a analyzeRequest) validate() error {
	switch {
	case strings.TrimSpace(a.Query) == "":
		return errors.New("missing query")
	case a.Budget <= 0:
		return errors.New("budget must be positive")
	case strings.TrimSpace(a.RequesterID) == "":
		return errors.New("missing requester_id")
	}
	return nil
}

// specialistResponseJSON mirrors one normalized specialist answer.
type specialistResponseJSON struct {
	SpecialistID    string                 `json:"specialist_id"`
	SpecialistName  string                 `json:"specialist_name"`
	Score           float64                `json:"score"`
	Analysis        string                 `json:"analysis"`
	RiskLevel       string                 `json:"risk_level"`
	Flags           []string               `json:"flags"`
	Metadata        map[string]interface{} `json:"metadata"`
	ExecutionTimeMs int64                  `json:"execution_time_ms"`
}

// analyzeResponse mirrors the aggregate result returned to the caller.
type analyzeResponse struct {
	RequestID         string                   `json:"request_id"`
	AverageScore      int                      `json:"average_score"`
	ConsensusStrength float64                  `json:"consensus_strength"`
	Recommendation    string                   `json:"recommendation"`
	Confidence        int                      `json:"confidence"`
	TotalCost         int                      `json:"total_cost"`
	GrossCost         int                      `json:"gross_cost"`
	RespondentCount   int                      `json:"respondent_count"`
	EligibleCount     int                      `json:"eligible_count"`
	Responses         []specialistResponseJSON `json:"responses"`
}

// HandleAnalyze handles POST /analyze requests.
func (h *AnalyzeHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	const op = "api.analyze"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	priority, err := model.ParsePriority(req.Priority)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	result, err := h.deps.Dispatch(r.Context(), model.AnalysisRequest{
		Query:       req.Query,
		Target:      req.Target,
		Budget:      req.Budget,
		RequesterID: req.RequesterID,
		Priority:    priority,
	})
	if err != nil {
		writeDispatchError(w, err)
		return
	}

	responses := make([]specialistResponseJSON, len(result.Consensus.Responses))
	for i, resp := range result.Consensus.Responses {
		responses[i] = specialistResponseJSON{
			SpecialistID:    resp.SpecialistID,
			SpecialistName:  resp.SpecialistName,
			Score:           resp.Score,
			Analysis:        resp.Analysis,
			RiskLevel:       string(resp.RiskLevel),
			Flags:           resp.Flags,
			Metadata:        resp.Metadata,
			ExecutionTimeMs: resp.ExecutionTimeMs,
		}
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		RequestID:         result.RequestID,
		AverageScore:      result.Consensus.AverageScore,
		ConsensusStrength: result.Consensus.ConsensusStrength,
		Recommendation:    result.Consensus.Recommendation,
		Confidence:        result.Consensus.Confidence,
		TotalCost:         result.Consensus.TotalCost,
		GrossCost:         result.GrossCost,
		RespondentCount:   result.RespondentCount,
		EligibleCount:     result.EligibleCount,
		Responses:         responses,
	})
}

// writeDispatchError translates broker error kinds to HTTP statuses.
// Per-specialist failures never reach this path; only the three
// caller-visible kinds do.
func writeDispatchError(w http.ResponseWriter, err error) {
	var budgetErr *app.BudgetError
	switch {
	case errors.As(err, &budgetErr):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{
			Code:      "budget_too_low",
			Message:   budgetErr.Error(),
			MinBudget: budgetErr.MinBudget,
		})
	case errors.Is(err, app.ErrValidation):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, app.ErrAllSpecialistsFailed):
		writeError(w, http.StatusBadGateway, "all_specialists_failed", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}
