package cache

import "errors"

// Sentinel kinds for cache errors.
var (
	ErrNotFound     = errors.New("member not found")
	ErrInvalidLimit = errors.New("invalid page limit")
)
