package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/quorumlabs/quorum/internal/adapters/registry"
)

// SpecialistsHandler serves the specialist catalog with live reputation.
type SpecialistsHandler struct {
	deps Dependencies
}

// NewSpecialistsHandler creates a new specialists handler.
func NewSpecialistsHandler(deps Dependencies) *SpecialistsHandler {
	return &SpecialistsHandler{deps: deps}
}

// specialistJSON mirrors one catalog entry.
type specialistJSON struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Category          string  `json:"category"`
	Price             int     `json:"price"`
	Reputation        int     `json:"reputation"`
	TotalTasks        int64   `json:"total_tasks"`
	SuccessRate       float64 `json:"success_rate"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
	Active            bool    `json:"active"`
}

func toJSON(s registry.Specialist) specialistJSON {
	return specialistJSON{
		ID:                s.ID,
		Name:              s.Name,
		Category:          string(s.Category),
		Price:             s.Price,
		Reputation:        s.Reputation,
		TotalTasks:        s.TotalTasks,
		SuccessRate:       s.SuccessRate,
		AvgResponseTimeMs: s.AvgResponseTimeMs,
		Active:            s.Active,
	}
}

// HandleList handles GET /specialists requests.
func (h *SpecialistsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	specialists := h.deps.Specialists(r.Context())
	out := make([]specialistJSON, len(specialists))
	for i, s := range specialists {
		out[i] = toJSON(s)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /specialists/{id} requests.
func (h *SpecialistsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.specialist"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/specialists/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	s, err := h.deps.SpecialistByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	writeJSON(w, http.StatusOK, toJSON(s))
}
