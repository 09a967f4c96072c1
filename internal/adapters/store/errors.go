package store

import (
	"errors"
	"fmt"
)

// Sentinel kinds for store errors.
var (
	// ErrNoRecord means the user has no qualifying submission. A
	// normal outcome for rank queries, not a failure.
	ErrNoRecord = errors.New("no score record")

	// ErrUnavailable marks a failed durable read or write. Callers
	// surface it as retryable.
	ErrUnavailable = errors.New("score store unavailable")
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
