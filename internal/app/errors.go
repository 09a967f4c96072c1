package service

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrValidation rejects a submission or query before any write.
	ErrValidation = errors.New("validation failed")

	// ErrStoreUnavailable reports that the durable store could not serve
	// the request. Callers may retry.
	ErrStoreUnavailable = errors.New("score store unavailable")

	// ErrCacheUnavailable reports a cache failure. It is absorbed inside
	// the service and never returned to callers; it exists for wrapping
	// in logs.
	ErrCacheUnavailable = errors.New("leaderboard cache unavailable")

	// ErrNotFound reports that a user has no qualifying record. A normal
	// outcome, not a failure.
	ErrNotFound = errors.New("not found")
)
