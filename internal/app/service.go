// Package app provides the broker service that fans a single analysis
// request out to all eligible specialists and reduces their answers into
// one consensus result.
package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quorumlabs/quorum/internal/adapters/registry"
	"github.com/quorumlabs/quorum/internal/adapters/specialist"
	"github.com/quorumlabs/quorum/internal/domain/consensus"
	"github.com/quorumlabs/quorum/internal/domain/model"
	"github.com/quorumlabs/quorum/internal/payment"
	"github.com/quorumlabs/quorum/pkg/logger"
	"github.com/quorumlabs/quorum/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultPerCallTimeout = 45 * time.Second
	defaultMaxBudget      = 1_000_000
	percent               = 100
)

// Result is the caller-facing outcome of one dispatched request.
type Result struct {
	RequestID string
	Consensus model.ConsensusResult

	// RespondentCount is how many specialists answered successfully;
	// EligibleCount is how many fit the budget and were called.
	RespondentCount int
	EligibleCount   int

	// GrossCost is the specialist cost plus the platform fee.
	GrossCost int
}

// Service implements the broker: registry-backed bid selection, concurrent
// fan-out with per-call isolation, reputation bookkeeping, and consensus.
type Service struct {
	mu sync.RWMutex

	registry *registry.Registry
	caller   specialist.Caller
	engine   *consensus.Engine

	seeds              []registry.Seed
	paymentMode        specialist.PaymentMode
	settler            payment.Settler
	perCallTimeout     time.Duration
	platformFeePercent float64
	maxBudget          int

	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSpecialists seeds the registry catalog.
func WithSpecialists(seeds []registry.Seed) Option {
	return func(s *Service) {
		s.seeds = seeds
	}
}

// WithPaymentMode selects free or paid specialist calls.
func WithPaymentMode(mode specialist.PaymentMode) Option {
	return func(s *Service) {
		if mode == specialist.PaymentFree || mode == specialist.PaymentPaid {
			s.paymentMode = mode
		}
	}
}

// WithSettler wires the external settlement capability used in paid mode.
func WithSettler(settler payment.Settler) Option {
	return func(s *Service) {
		if settler != nil {
			s.settler = settler
		}
	}
}

// WithPerCallTimeout sets the hard deadline for each specialist call.
func WithPerCallTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.perCallTimeout = d
		}
	}
}

// WithPlatformFeePercent sets the fee applied to reported gross cost.
func WithPlatformFeePercent(p float64) Option {
	return func(s *Service) {
		if p >= 0 {
			s.platformFeePercent = p
		}
	}
}

// WithMaxBudget caps the budget accepted on a single request.
func WithMaxBudget(max int) Option {
	return func(s *Service) {
		if max > 0 {
			s.maxBudget = max
		}
	}
}

// WithConsensusOptions forwards tuning options to the consensus engine.
func WithConsensusOptions(opts ...consensus.Option) Option {
	return func(s *Service) {
		s.engine = consensus.NewEngine(opts...)
	}
}

// WithCaller overrides the specialist caller. Used by tests to substitute
// fakes without a network.
func WithCaller(c specialist.Caller) Option {
	return func(s *Service) {
		if c != nil {
			s.caller = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		paymentMode:        specialist.PaymentFree,
		perCallTimeout:     defaultPerCallTimeout,
		platformFeePercent: 0,
		maxBudget:          defaultMaxBudget,
		engine:             consensus.NewEngine(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the registry and the specialist client.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.registry = registry.New(s.seeds, registry.WithLogger(s.logger.Named("registry")))

	if s.caller == nil {
		s.caller = specialist.NewClient(
			specialist.WithTimeout(s.perCallTimeout),
			specialist.WithPaymentMode(s.paymentMode),
			specialist.WithSettler(s.settler),
		)
	}

	s.started = true
	s.logger.Info(ctx, "broker started",
		logger.Int("specialists", len(s.seeds)),
		logger.String("paymentMode", string(s.paymentMode)),
		logger.Duration("perCallTimeout", s.perCallTimeout),
	)

	return nil
}

// Stop shuts the service down. The registry is process-local bookkeeping,
// so there is nothing durable to flush.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "broker stopped")
}

// outcome is one fan-out slot: a tagged success-or-failure per issued call.
type outcome struct {
	response model.SpecialistResponse
	err      error
}

// Dispatch runs one request end to end: validate, select bids, call every
// eligible specialist concurrently, record reputation outcomes, and reduce
// the successes into a consensus result.
//
// Successful responses are collected in the order calls were issued, not
// completion order; the reducer is order-independent but issue order keeps
// results deterministic for a fixed bid set.
func (s *Service) Dispatch(ctx context.Context, req model.AnalysisRequest) (Result, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return Result{}, ErrNotStarted
	}

	start := time.Now()

	if err := s.validate(req); err != nil {
		metrics.RecordDispatchRejected("validation")
		return Result{}, err
	}
	if req.Priority == "" {
		req.Priority = model.PriorityMedium
	}

	bids := s.registry.Bids(ctx, req.Budget)
	if len(bids) == 0 {
		minPrice, _ := s.registry.MinPrice(ctx)
		metrics.RecordDispatchRejected("budget")
		return Result{}, &BudgetError{Budget: req.Budget, MinBudget: minPrice}
	}

	requestID := uuid.NewString()
	metrics.RecordDispatchRequest()
	s.logger.Info(ctx, "dispatching request",
		logger.String("requestID", requestID),
		logger.String("requester", req.RequesterID),
		logger.Int("budget", req.Budget),
		logger.Int("eligible", len(bids)),
	)

	callReq := specialist.Request{
		Query:    req.Query,
		Target:   req.Target,
		Priority: req.Priority,
	}

	// Fan out one goroutine per bid. Each slot settles independently; one
	// specialist's timeout never delays or cancels another's in-flight
	// call, and the join waits for every slot before reducing.
	outcomes := make([]outcome, len(bids))
	var wg sync.WaitGroup
	for i := range bids {
		wg.Add(1)
		go func(i int, bid model.Bid) {
			defer wg.Done()

			callStart := time.Now()
			resp, err := s.caller.Call(ctx, bid, callReq)
			elapsedMs := float64(time.Since(callStart).Milliseconds())

			// Every completed call feeds reputation, regardless of the
			// overall request outcome.
			s.registry.RecordOutcome(ctx, bid.SpecialistID, err == nil, elapsedMs)
			metrics.RecordSpecialistCall(bid.SpecialistID, outcomeLabel(err))
			metrics.RecordSpecialistCallLatency(elapsedMs)

			if err != nil {
				s.logger.Warn(ctx, "specialist call failed",
					logger.String("requestID", requestID),
					logger.String("specialist", bid.SpecialistID),
					logger.Error(err),
				)
			}

			outcomes[i] = outcome{response: resp, err: err}
		}(i, bids[i])
	}
	wg.Wait()

	successes := make([]model.SpecialistResponse, 0, len(bids))
	for i := range outcomes {
		if outcomes[i].err == nil {
			successes = append(successes, outcomes[i].response)
		}
	}

	metrics.RecordDispatchCounts(len(bids), len(successes))

	if len(successes) == 0 {
		metrics.RecordDispatchAllFailed()
		return Result{}, &AllFailedError{Eligible: len(bids)}
	}

	verdict, err := s.engine.Reduce(successes)
	if err != nil {
		// Unreachable with successes non-empty; surfacing it means the
		// respondent-count invariant above was violated.
		metrics.RecordErrorByComponent("dispatcher", "consensus_guard")
		return Result{}, fmt.Errorf("reducing responses: %w", err)
	}

	metrics.RecordConsensus(verdict.ConsensusStrength, verdict.AverageScore)
	metrics.RecordSpend(verdict.TotalCost)
	metrics.RecordDispatchDuration(float64(time.Since(start).Milliseconds()))

	s.logger.Info(ctx, "request dispatched",
		logger.String("requestID", requestID),
		logger.Int("respondents", len(successes)),
		logger.Int("eligible", len(bids)),
		logger.Int("averageScore", verdict.AverageScore),
		logger.Float64("consensusStrength", verdict.ConsensusStrength),
	)

	return Result{
		RequestID:       requestID,
		Consensus:       verdict,
		RespondentCount: len(successes),
		EligibleCount:   len(bids),
		GrossCost:       s.grossCost(verdict.TotalCost),
	}, nil
}

// Specialists returns the active catalog with live reputation state.
func (s *Service) Specialists(ctx context.Context) []registry.Specialist {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil
	}
	return s.registry.ActiveSpecialists(ctx)
}

// SpecialistByID returns one specialist snapshot.
func (s *Service) SpecialistByID(ctx context.Context, id string) (registry.Specialist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return registry.Specialist{}, ErrNotStarted
	}
	return s.registry.ByID(ctx, id)
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":            s.started,
		"paymentMode":        string(s.paymentMode),
		"perCallTimeoutMs":   s.perCallTimeout.Milliseconds(),
		"platformFeePercent": s.platformFeePercent,
	}
	if s.started {
		stats["specialists"] = s.registry.Count(ctx)
	}
	return stats
}

// validate enforces the inbound request contract before any network call.
func (s *Service) validate(req model.AnalysisRequest) error {
	switch {
	case strings.TrimSpace(req.Query) == "":
		return fmt.Errorf("%w: query must not be empty", ErrValidation)
	case req.Budget <= 0:
		return fmt.Errorf("%w: budget must be positive", ErrValidation)
	case req.Budget > s.maxBudget:
		return fmt.Errorf("%w: budget exceeds maximum %d", ErrValidation, s.maxBudget)
	case strings.TrimSpace(req.RequesterID) == "":
		return fmt.Errorf("%w: requester id must not be empty", ErrValidation)
	}
	if req.Priority != "" {
		if _, err := model.ParsePriority(string(req.Priority)); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	return nil
}

// grossCost applies the platform fee to the specialist cost for reporting.
func (s *Service) grossCost(netCost int) int {
	fee := float64(netCost) * s.platformFeePercent / percent
	return netCost + int(math.Round(fee))
}

// outcomeLabel maps a call error onto a metrics outcome label.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, specialist.ErrTimeout):
		return "timeout"
	case errors.Is(err, specialist.ErrUpstream):
		return "upstream"
	case errors.Is(err, specialist.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, specialist.ErrPaymentUnavailable):
		return "payment"
	default:
		return "network"
	}
}
