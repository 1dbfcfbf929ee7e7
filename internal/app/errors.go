package app

import (
	"errors"
	"fmt"
)

// Sentinel kinds for broker errors. Only these three surface to callers;
// per-specialist failures are absorbed into reputation bookkeeping.
var (
	ErrValidation           = errors.New("invalid request")
	ErrBudgetInsufficient   = errors.New("budget too low")
	ErrAllSpecialistsFailed = errors.New("all specialists failed")
	ErrNotStarted           = errors.New("broker not started")
)

// BudgetError reports that no specialist fits the request budget and
// carries the minimum viable budget as caller guidance.
type BudgetError struct {
	Budget    int
	MinBudget int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("budget too low: %d offered, cheapest specialist costs %d", e.Budget, e.MinBudget)
}

func (e *BudgetError) Unwrap() error { return ErrBudgetInsufficient }

// AllFailedError reports that every eligible specialist call failed.
type AllFailedError struct {
	Eligible int
}

func (e *AllFailedError) Error() string {
	return fmt.Sprintf("all %d specialists failed; verify the target identifier and try again", e.Eligible)
}

func (e *AllFailedError) Unwrap() error { return ErrAllSpecialistsFailed }
