package specialist

import "errors"

// Sentinel kinds for specialist call failures. Every failed call maps onto
// exactly one of these so the dispatcher can classify outcomes without
// string matching.
var (
	ErrNetwork            = errors.New("specialist unreachable")
	ErrTimeout            = errors.New("specialist call timed out")
	ErrUpstream           = errors.New("specialist returned an error status")
	ErrMalformedResponse  = errors.New("specialist response malformed")
	ErrPaymentUnavailable = errors.New("payment capability unavailable")
)
