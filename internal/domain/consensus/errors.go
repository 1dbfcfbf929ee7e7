package consensus

import "errors"

// Sentinel kinds for consensus errors.
var (
	// ErrNoResponses guards against reducing an empty response set. It
	// signals a dispatcher bug, not a recoverable request condition.
	ErrNoResponses = errors.New("consensus requires at least one response")
)
