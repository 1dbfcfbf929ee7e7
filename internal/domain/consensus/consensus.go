// Package consensus reduces independent specialist responses into one
// aggregate judgment with a variance-based agreement metric.
package consensus

import (
	"math"

	"github.com/quorumlabs/quorum/internal/domain/model"
)

// Default reduction constants.
const (
	// defaultMaxVariance calibrates population variance into a [0,1]
	// agreement scale. 2500 is the variance of scores split evenly across
	// the full 0-100 range (maximal disagreement); lowering it penalizes
	// disagreement more harshly. Tunable via WithMaxVariance.
	defaultMaxVariance = 2500.0

	// defaultQuorum is the respondent count needed for full confidence
	// scaling. Fewer respondents discount confidence proportionally even
	// when they fully agree. Tunable via WithQuorum.
	defaultQuorum = 5

	strengthPrecision = 100 // consensus strength rounds to 2 decimals
)

// Recommendation tiers, from safest to worst.
const (
	RecommendLowRisk      = "LOW RISK - APPEARS SAFE"
	RecommendMediumRisk   = "MEDIUM RISK - EXERCISE CAUTION"
	RecommendHighRisk     = "HIGH RISK - NOT RECOMMENDED"
	RecommendMajorityHigh = "HIGH RISK - DO NOT RECOMMEND"
	RecommendCritical     = "CRITICAL RISK - AVOID COMPLETELY"
)

// Score thresholds for the recommendation tiers.
const (
	lowRiskThreshold    = 80
	mediumRiskThreshold = 60
	highRiskThreshold   = 40
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithMaxVariance overrides the reference maximum variance.
func WithMaxVariance(v float64) Option {
	return func(e *Engine) {
		if v > 0 {
			e.maxVariance = v
		}
	}
}

// WithQuorum overrides the respondent count required for full confidence.
func WithQuorum(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.quorum = n
		}
	}
}

// Engine computes consensus results from specialist responses.
type Engine struct {
	maxVariance float64
	quorum      int
}

// NewEngine creates an Engine with the default reduction constants.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		maxVariance: defaultMaxVariance,
		quorum:      defaultQuorum,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Reduce computes the consensus result over one or more responses.
// Returns ErrNoResponses for an empty set; a correct dispatcher never
// calls Reduce without at least one successful response.
func (e *Engine) Reduce(responses []model.SpecialistResponse) (model.ConsensusResult, error) {
	if len(responses) == 0 {
		return model.ConsensusResult{}, ErrNoResponses
	}

	n := float64(len(responses))

	var sum float64
	for i := range responses {
		sum += responses[i].Score
	}
	mean := sum / n

	// Population variance: N in the denominator, not N-1.
	var sqDev float64
	for i := range responses {
		d := responses[i].Score - mean
		sqDev += d * d
	}
	variance := sqDev / n

	strength := math.Max(0, 1-variance/e.maxVariance)
	strength = math.Round(strength*strengthPrecision) / strengthPrecision

	confidence := int(math.Round(strength * 100 * e.quorumScale(len(responses))))

	totalCost := 0
	for i := range responses {
		totalCost += responses[i].Price()
	}

	avgScore := int(math.Round(mean))

	return model.ConsensusResult{
		AverageScore:      avgScore,
		ConsensusStrength: strength,
		Recommendation:    e.recommend(avgScore, responses),
		Confidence:        confidence,
		TotalCost:         totalCost,
		Responses:         responses,
	}, nil
}

// quorumScale discounts confidence for thin respondent sets: min(n, quorum)/quorum.
func (e *Engine) quorumScale(n int) float64 {
	if n > e.quorum {
		n = e.quorum
	}
	return float64(n) / float64(e.quorum)
}

// recommend picks the recommendation tier. Risk-level overrides are checked
// before score thresholds so a critical minority signal is never masked by
// an otherwise-acceptable average.
func (e *Engine) recommend(avgScore int, responses []model.SpecialistResponse) string {
	highCount := 0
	for i := range responses {
		switch responses[i].RiskLevel {
		case model.RiskCritical:
			return RecommendCritical
		case model.RiskHigh:
			highCount++
		}
	}
	if highCount*2 >= len(responses) {
		return RecommendMajorityHigh
	}

	switch {
	case avgScore >= lowRiskThreshold:
		return RecommendLowRisk
	case avgScore >= mediumRiskThreshold:
		return RecommendMediumRisk
	case avgScore >= highRiskThreshold:
		return RecommendHighRisk
	default:
		return RecommendCritical
	}
}
