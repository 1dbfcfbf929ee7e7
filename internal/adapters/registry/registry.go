// Package registry holds the process-wide catalog of specialist services
// and their running reputation state.
//
// The registry is the only state shared across concurrent requests. Each
// record carries its own mutex so outcome updates for the same specialist
// serialize while updates for different specialists proceed in parallel.
// Reputation is best-effort bookkeeping: process-local, reset on restart.
package registry

import (
	"context"
	"math"
	"sync"

	"github.com/quorumlabs/quorum/internal/domain/model"
	"github.com/quorumlabs/quorum/pkg/logger"
	"github.com/quorumlabs/quorum/pkg/metrics"
)

const reputationScale = 100

// Specialist describes one registered specialist service as seen by callers.
// It is a snapshot; the registry never hands out its internal records.
type Specialist struct {
	ID                string
	Name              string
	Category          model.Category
	Endpoint          string
	Price             int
	Reputation        int
	TotalTasks        int64
	SuccessRate       float64
	AvgResponseTimeMs float64
	Active            bool
}

// record is the internal mutable state for one specialist.
type record struct {
	mu sync.Mutex

	id                string
	name              string
	category          model.Category
	endpoint          string
	price             int
	reputation        int
	totalTasks        int64
	successRate       float64
	avgResponseTimeMs float64
	active            bool
}

// Registry serves bid queries and records dispatch outcomes.
type Registry struct {
	records []*record          // registration order
	byID    map[string]*record // id -> record

	logger logger.Logger
}

// Seed describes one specialist to register at construction time.
type Seed struct {
	ID                string
	Name              string
	Category          model.Category
	Endpoint          string
	Price             int
	InitialReputation int
	Active            bool
}

// New builds a Registry from the seed catalog. Registration order is
// preserved; records are never deleted for the life of the process.
func New(seeds []Seed, opts ...Option) *Registry {
	r := &Registry{
		byID: make(map[string]*record, len(seeds)),
	}

	for _, opt := range opts {
		opt(r)
	}

	for _, s := range seeds {
		rec := &record{
			id:         s.ID,
			name:       s.Name,
			category:   s.Category,
			endpoint:   s.Endpoint,
			price:      s.Price,
			reputation: clampReputation(s.InitialReputation),
			active:     s.Active,
		}
		// Seeded reputation implies a seeded success rate so that the
		// running mean starts from a consistent point.
		rec.successRate = float64(rec.reputation) / reputationScale
		r.records = append(r.records, rec)
		r.byID[s.ID] = rec
		metrics.UpdateSpecialistReputation(s.ID, rec.reputation)
	}

	return r
}

// ActiveSpecialists returns snapshots of all active specialists in
// registration order.
func (r *Registry) ActiveSpecialists(_ context.Context) []Specialist {
	out := make([]Specialist, 0, len(r.records))
	for _, rec := range r.records {
		rec.mu.Lock()
		if rec.active {
			out = append(out, rec.snapshotLocked())
		}
		rec.mu.Unlock()
	}
	return out
}

// ByID returns a snapshot of the specialist with the given id.
// Returns ErrNotFound for unknown ids.
func (r *Registry) ByID(_ context.Context, id string) (Specialist, error) {
	rec, ok := r.byID[id]
	if !ok {
		return Specialist{}, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.snapshotLocked(), nil
}

// Bids returns offers from all active specialists priced within budget,
// sorted by confidence descending. The sort is stable so ties keep
// registration order. An empty slice means the budget fits no specialist;
// callers must surface that, never substitute a cheaper set.
func (r *Registry) Bids(_ context.Context, budget int) []model.Bid {
	bids := make([]model.Bid, 0, len(r.records))
	for _, rec := range r.records {
		rec.mu.Lock()
		if rec.active && rec.price <= budget {
			bids = append(bids, model.Bid{
				SpecialistID:    rec.id,
				Name:            rec.name,
				Endpoint:        rec.endpoint,
				Price:           rec.price,
				EstimatedTimeMs: rec.avgResponseTimeMs,
				Confidence:      rec.reputation,
			})
		}
		rec.mu.Unlock()
	}

	// Insertion sort keeps the sort stable without pulling in sort.SliceStable
	// closures for a catalog this small.
	for i := 1; i < len(bids); i++ {
		for j := i; j > 0 && bids[j].Confidence > bids[j-1].Confidence; j-- {
			bids[j], bids[j-1] = bids[j-1], bids[j]
		}
	}

	return bids
}

// MinPrice returns the cheapest active specialist price and true, or 0 and
// false when no specialist is active. Used for budget-too-low guidance.
func (r *Registry) MinPrice(_ context.Context) (int, bool) {
	min, found := 0, false
	for _, rec := range r.records {
		rec.mu.Lock()
		if rec.active && (!found || rec.price < min) {
			min, found = rec.price, true
		}
		rec.mu.Unlock()
	}
	return min, found
}

// RecordOutcome folds one dispatch outcome into the specialist's running
// stats. Unknown ids are a silent no-op so racing completion handlers can
// never crash the dispatch path. Success rate and response time are exact
// running means over the full task history, which intentionally makes
// long-lived specialists resistant to single-outcome swings.
func (r *Registry) RecordOutcome(ctx context.Context, id string, success bool, responseTimeMs float64) {
	rec, ok := r.byID[id]
	if !ok {
		return
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	prior := float64(rec.totalTasks)
	rec.totalTasks++
	n := float64(rec.totalTasks)

	outcome := 0.0
	if success {
		outcome = 1.0
	}
	rec.successRate = (rec.successRate*prior + outcome) / n
	rec.reputation = int(math.Round(rec.successRate * reputationScale))
	rec.avgResponseTimeMs = (rec.avgResponseTimeMs*prior + responseTimeMs) / n

	metrics.UpdateSpecialistReputation(rec.id, rec.reputation)

	if r.logger != nil {
		r.logger.Debug(ctx, "recorded specialist outcome",
			logger.String("specialist", rec.id),
			logger.Bool("success", success),
			logger.Int("reputation", rec.reputation),
			logger.Int64("totalTasks", rec.totalTasks),
		)
	}
}

// Count returns the number of registered specialists, active or not.
func (r *Registry) Count(_ context.Context) int {
	return len(r.records)
}

func (rec *record) snapshotLocked() Specialist {
	return Specialist{
		ID:                rec.id,
		Name:              rec.name,
		Category:          rec.category,
		Endpoint:          rec.endpoint,
		Price:             rec.price,
		Reputation:        rec.reputation,
		TotalTasks:        rec.totalTasks,
		SuccessRate:       rec.successRate,
		AvgResponseTimeMs: rec.avgResponseTimeMs,
		Active:            rec.active,
	}
}

func clampReputation(v int) int {
	if v < 0 {
		return 0
	}
	if v > reputationScale {
		return reputationScale
	}
	return v
}
