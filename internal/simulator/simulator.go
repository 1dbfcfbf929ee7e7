// Package simulator runs fake specialist HTTP services for local broker
// runs and load checks. Each simulated specialist answers the broker's
// analyze contract with a configurable score band, risk mix, latency, and
// failure rate.
package simulator

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/quorumlabs/quorum/pkg/logger"
)

const (
	randomDivisor   = 1_000_000
	shutdownTimeout = 5 * time.Second
)

// Profile configures one simulated specialist.
type Profile struct {
	ID       string
	Addr     string // listen address, e.g. ":9101"
	ScoreMin float64
	ScoreMax float64
	// RiskWeights maps risk level to its selection weight. Empty means
	// always MEDIUM.
	RiskWeights map[string]float64
	// FailureRate in [0,1] is the probability of answering 500.
	FailureRate float64
	// OmitScoreRate in [0,1] is the probability of answering without a
	// score field, exercising the broker's fail-closed normalization.
	OmitScoreRate float64
	MinLatency    time.Duration
	MaxLatency    time.Duration
}

// Specialist is one running simulated service.
type Specialist struct {
	profile Profile
	server  *http.Server
	logger  logger.Logger
}

// randomFloat returns a random float64 in [0,1) using crypto/rand.
func randomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomDivisor))
	return float64(n.Int64()) / float64(randomDivisor)
}

// New creates a simulated specialist from a profile.
func New(profile Profile) *Specialist {
	s := &Specialist{
		profile: profile,
		logger:  logger.Get().Named("simulator").Named(profile.ID),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/analyze", s.handleAnalyze)
	s.server = &http.Server{
		Addr:              profile.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Start runs the specialist's HTTP server until ctx is canceled.
func (s *Specialist) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.Info(ctx, "simulated specialist listening", logger.String("addr", s.profile.Addr))

	select {
	case err := <-errCh:
		return fmt.Errorf("specialist %s: %w", s.profile.ID, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

// analyzedRequest mirrors the broker's outbound call payload.
type analyzedRequest struct {
	Query    string `json:"query"`
	Target   string `json:"target"`
	Priority string `json:"priority"`
}

func (s *Specialist) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req analyzedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	// Simulated processing latency.
	if s.profile.MaxLatency > s.profile.MinLatency {
		span := s.profile.MaxLatency - s.profile.MinLatency
		delay := s.profile.MinLatency + time.Duration(randomFloat()*float64(span))
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if randomFloat() < s.profile.FailureRate {
		http.Error(w, "simulated outage", http.StatusInternalServerError)
		return
	}

	payload := map[string]interface{}{
		"analysis":  fmt.Sprintf("simulated verdict on %q", req.Target),
		"riskLevel": s.pickRisk(),
		"flags":     []string{},
		"metadata": map[string]interface{}{
			"analysisId": uuid.NewString(),
			"simulated":  true,
		},
	}
	if randomFloat() >= s.profile.OmitScoreRate {
		score := s.profile.ScoreMin + randomFloat()*(s.profile.ScoreMax-s.profile.ScoreMin)
		payload["score"] = score
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// pickRisk selects a risk level from the weighted mix.
func (s *Specialist) pickRisk() string {
	if len(s.profile.RiskWeights) == 0 {
		return "MEDIUM"
	}

	var total float64
	for _, w := range s.profile.RiskWeights {
		total += w
	}

	target := randomFloat() * total
	// Fixed iteration order keeps the selection stable across calls.
	for _, level := range []string{"LOW", "MEDIUM", "HIGH", "CRITICAL"} {
		w, ok := s.profile.RiskWeights[level]
		if !ok {
			continue
		}
		if target < w {
			return level
		}
		target -= w
	}
	return "MEDIUM"
}
