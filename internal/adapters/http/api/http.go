// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/quorumlabs/quorum/internal/adapters/registry"
	"github.com/quorumlabs/quorum/internal/app"
	"github.com/quorumlabs/quorum/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the broker service.
type Dependencies interface {
	Dispatch(ctx context.Context, req model.AnalysisRequest) (app.Result, error)
	Specialists(ctx context.Context) []registry.Specialist
	SpecialistByID(ctx context.Context, id string) (registry.Specialist, error)
	Stats(ctx context.Context) map[string]interface{}
}

// Server wires HTTP routes for the broker API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	analyzeHandler     *AnalyzeHandler
	specialistsHandler *SpecialistsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		analyzeHandler:     NewAnalyzeHandler(deps),
		specialistsHandler: NewSpecialistsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/analyze", MetricsMiddleware(s.analyzeHandler.HandleAnalyze, "analyze"))
	mux.HandleFunc("/specialists", MetricsMiddleware(s.specialistsHandler.HandleList, "specialists"))
	mux.HandleFunc("/specialists/", MetricsMiddleware(s.specialistsHandler.HandleGet, "specialist"))
}

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	MinBudget int    `json:"min_budget,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
