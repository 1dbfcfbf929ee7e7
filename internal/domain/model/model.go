// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// RiskLevel classifies how dangerous a specialist judged the target to be.
type RiskLevel string

// Recognized risk levels, ordered by severity.
const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// ParseRiskLevel maps a raw payload value onto a recognized RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch RiskLevel(strings.ToUpper(strings.TrimSpace(s))) {
	case RiskLow:
		return RiskLow, nil
	case RiskMedium:
		return RiskMedium, nil
	case RiskHigh:
		return RiskHigh, nil
	case RiskCritical:
		return RiskCritical, nil
	default:
		return "", fmt.Errorf("unknown risk level: %q", s)
	}
}

// Priority expresses how urgently the caller wants an answer.
type Priority string

// Recognized priorities.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority maps a raw value onto a recognized Priority.
// An empty value defaults to medium.
func ParsePriority(s string) (Priority, error) {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return PriorityMedium, nil
	case PriorityLow:
		return PriorityLow, nil
	case PriorityMedium:
		return PriorityMedium, nil
	case PriorityHigh:
		return PriorityHigh, nil
	default:
		return "", fmt.Errorf("unknown priority: %q", s)
	}
}

// Category tags what kind of analysis a specialist performs.
type Category string

// Recognized specialist categories.
const (
	CategoryContract   Category = "contract"
	CategorySentiment  Category = "sentiment"
	CategoryMarket     Category = "market"
	CategoryGeneralist Category = "generalist"
)

// ParseCategory maps a raw value onto a recognized Category.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryContract:
		return CategoryContract, nil
	case CategorySentiment:
		return CategorySentiment, nil
	case CategoryMarket:
		return CategoryMarket, nil
	case CategoryGeneralist:
		return CategoryGeneralist, nil
	default:
		return "", fmt.Errorf("unknown specialist category: %q", s)
	}
}

// AnalysisRequest is one inbound request to the broker.
type AnalysisRequest struct {
	Query       string   // what the caller wants analyzed; required
	Target      string   // optional target identifier, e.g. a token address
	Budget      int      // maximum spend in smallest currency units; must be > 0
	RequesterID string   // caller identity; required
	Priority    Priority // defaults to medium
}

// Bid is an ephemeral offer derived from a specialist record at request time.
// Confidence mirrors current reputation; EstimatedTimeMs mirrors the running
// mean response time. Both are read at bid time, so successive calls may see
// different values as reputation moves.
type Bid struct {
	SpecialistID    string
	Name            string
	Endpoint        string
	Price           int
	EstimatedTimeMs float64
	Confidence      int
}

// SpecialistResponse is one specialist's normalized answer.
// Score is always within [0,100]; RiskLevel is one of the four recognized
// levels. Responses that cannot satisfy these invariants are dropped at the
// client boundary instead of being constructed.
type SpecialistResponse struct {
	SpecialistID    string
	SpecialistName  string
	Score           float64
	Analysis        string
	RiskLevel       RiskLevel
	Flags           []string
	Metadata        map[string]interface{}
	ExecutionTimeMs int64
}

// Price returns the charged price recorded in the response metadata,
// or 0 when absent.
func (r *SpecialistResponse) Price() int {
	if r.Metadata == nil {
		return 0
	}
	switch v := r.Metadata["price"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// ConsensusResult is the aggregate judgment over all successful responses
// for one request.
type ConsensusResult struct {
	AverageScore      int
	ConsensusStrength float64
	Recommendation    string
	Confidence        int
	TotalCost         int
	Responses         []SpecialistResponse
}
