package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// NewKind tags a sentinel kind with the operation that raised it.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// WrapKind tags a sentinel kind with the operation and the underlying cause.
func WrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %v", op, kind, err)
}
